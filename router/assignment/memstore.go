// Copyright 2025 Canarygate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package assignment

import (
	"context"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store. Concurrent access for different clients
// does not contend beyond the cache's internal locking; concurrent writes for
// the same client converge last-write-wins.
type MemStore struct {
	// Do not embed or use type directly to reduce the cache's API surface.
	c    *cache.Cache
	ttl  time.Duration
	lock sync.RWMutex
}

// NewMemStore creates an in-memory assignment store. Bindings expire ttl
// after their last Put. A non-positive ttl falls back to DefaultTTL.
func NewMemStore(ttl time.Duration) *MemStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemStore{
		// Items are inserted with explicit expiration, so no default
		// expiration is needed. Cleaning happens via DeleteExpired.
		c:   cache.New(cache.NoExpiration, 0),
		ttl: ttl,
	}
}

func (s *MemStore) Get(_ context.Context, clientID string) (Assignment, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	obj, ok := s.c.Get(clientID)
	if !ok {
		return Assignment{}, false, nil
	}
	return obj.(Assignment), true, nil
}

func (s *MemStore) Put(_ context.Context, clientID, version string) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	s.c.Set(clientID, Assignment{
		ClientID:   clientID,
		Version:    version,
		AssignedAt: time.Now(),
	}, s.ttl)
	return nil
}

func (s *MemStore) Evict(_ context.Context, clientID string) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	s.c.Delete(clientID)
	return nil
}

func (s *MemStore) EvictVersion(_ context.Context, version string) (int, error) {
	// Write lock so the sweep sees a consistent snapshot of Items.
	s.lock.Lock()
	defer s.lock.Unlock()
	var cnt int
	for key, item := range s.c.Items() {
		if item.Object.(Assignment).Version == version {
			s.c.Delete(key)
			cnt++
		}
	}
	return cnt, nil
}

func (s *MemStore) DeleteExpired(_ context.Context) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	var cnt int
	s.c.OnEvicted(func(string, any) {
		cnt++
	})
	s.c.DeleteExpired()
	s.c.OnEvicted(nil)
	return cnt, nil
}
