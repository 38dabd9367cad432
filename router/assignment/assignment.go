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

// Package assignment persists sticky client-to-version bindings within a
// bounded TTL window. Stickiness is a best-effort optimization, not a
// correctness requirement: callers must tolerate store failures by falling
// through to fresh bucketing.
package assignment

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is the assignment lifetime if none is configured. It
// approximates a browsing session.
const DefaultTTL = 12 * time.Hour

// ErrStoreUnavailable indicates the backing store could not serve the
// request. It is internal to the router: the routing path treats it as a
// cache miss and never surfaces it to the request.
var ErrStoreUnavailable = errors.New("assignment store unavailable")

// Assignment is a sticky binding of a client to a version.
type Assignment struct {
	// ClientID is the opaque client identifier the binding is keyed on.
	ClientID string
	// Version is the version the client was previously routed to.
	Version string
	// AssignedAt is the time the binding was created or last refreshed.
	AssignedAt time.Time
}

// Store is the interface for sticky assignment storage. Expiry is owned by
// the store: Get never returns an expired binding.
type Store interface {
	// Get returns the binding for the client. The second return value is
	// false if no unexpired binding exists.
	Get(ctx context.Context, clientID string) (Assignment, bool, error)
	// Put creates or overwrites the binding and resets its TTL clock.
	// Overwriting with the same version is a no-op beyond the TTL refresh.
	Put(ctx context.Context, clientID, version string) error
	// Evict removes the binding for the client, if any.
	Evict(ctx context.Context, clientID string) error
	// EvictVersion removes all bindings to the given version and reports how
	// many were removed. Used on rollback to stop serving a withdrawn
	// candidate.
	EvictVersion(ctx context.Context, version string) (int, error)
	// DeleteExpired removes expired bindings and reports how many were
	// removed.
	DeleteExpired(ctx context.Context) (int, error)
}
