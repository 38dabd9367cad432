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

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canarygate/canarygate/pkg/private/xtest"
	"github.com/canarygate/canarygate/router/assignment"
	"github.com/canarygate/canarygate/router/assignment/sqlite"
)

func newBackend(t *testing.T, ttl time.Duration) *sqlite.Backend {
	t.Helper()
	dir, cleanup := xtest.TempDir(t)
	t.Cleanup(cleanup)
	b, err := sqlite.New(filepath.Join(dir, "assignments.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBackendPutGet(t *testing.T) {
	b := newBackend(t, time.Minute)
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Put(ctx, "alice", "v2"))
	a, ok, err := b.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", a.Version)
	assert.Equal(t, "alice", a.ClientID)
}

func TestBackendLastWriteWins(t *testing.T) {
	b := newBackend(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "alice", "v1"))
	require.NoError(t, b.Put(ctx, "alice", "v2"))
	a, ok, err := b.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", a.Version)
}

func TestBackendExpiry(t *testing.T) {
	b := newBackend(t, time.Second)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "alice", "v2"))
	time.Sleep(1100 * time.Millisecond)

	_, ok, err := b.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	cnt, err := b.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
}

func TestBackendEvict(t *testing.T) {
	b := newBackend(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "alice", "v2"))
	require.NoError(t, b.Evict(ctx, "alice"))
	_, ok, err := b.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackendEvictVersion(t *testing.T) {
	b := newBackend(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "alice", "v2"))
	require.NoError(t, b.Put(ctx, "bob", "v2"))
	require.NoError(t, b.Put(ctx, "carol", "v1"))

	cnt, err := b.EvictVersion(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)

	a, ok, err := b.Get(ctx, "carol")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", a.Version)
}

func TestBackendReopen(t *testing.T) {
	dir, cleanup := xtest.TempDir(t)
	t.Cleanup(cleanup)
	path := filepath.Join(dir, "assignments.db")
	ctx := context.Background()

	b, err := sqlite.New(path, time.Minute)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, "alice", "v2"))
	require.NoError(t, b.Close())

	// Bindings survive a process restart.
	b, err = sqlite.New(path, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	a, ok, err := b.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", a.Version)
}

func TestBackendImplementsStore(t *testing.T) {
	var _ assignment.Store = newBackend(t, time.Minute)
}
