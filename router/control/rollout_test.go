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

package control_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/canarygate/canarygate/router/control"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeEvictor struct {
	mu      sync.Mutex
	evicted []string
	done    chan struct{}
}

func newFakeEvictor() *fakeEvictor {
	return &fakeEvictor{done: make(chan struct{}, 8)}
}

func (e *fakeEvictor) EvictVersion(ctx context.Context, version string) (int, error) {
	e.mu.Lock()
	e.evicted = append(e.evicted, version)
	e.mu.Unlock()
	e.done <- struct{}{}
	return 1, nil
}

func (e *fakeEvictor) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		t.Fatal("eviction sweep did not run")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.evicted...)
}

func TestStartRollout(t *testing.T) {
	c := control.New()
	ctx := context.Background()

	s := c.Status()
	assert.Equal(t, control.Idle, s.State)

	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 5))
	s = c.Status()
	assert.Equal(t, control.Ramping, s.State)
	assert.Equal(t, "v2", s.Candidate)
	assert.Equal(t, "v1", s.Baseline)
	assert.Equal(t, 5, s.Percentage)
}

func TestStartRolloutAtHundredGoesLive(t *testing.T) {
	c := control.New()
	require.NoError(t, c.StartRollout(context.Background(), "v2", "v1", 100))
	assert.Equal(t, control.Live, c.Status().State)
}

func TestStartRolloutWhileActive(t *testing.T) {
	c := control.New()
	ctx := context.Background()

	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 5))
	err := c.StartRollout(ctx, "v3", "v1", 5)
	assert.ErrorIs(t, err, control.ErrInvalidState)

	// The active rollout is untouched.
	s := c.Status()
	assert.Equal(t, "v2", s.Candidate)
	assert.Equal(t, 5, s.Percentage)
}

func TestStartRolloutValidation(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, control.New().StartRollout(ctx, "", "v1", 5))
	assert.Error(t, control.New().StartRollout(ctx, "v2", "", 5))
	assert.Error(t, control.New().StartRollout(ctx, "v2", "v2", 5))
	assert.ErrorIs(t, control.New().StartRollout(ctx, "v2", "v1", -1),
		control.ErrInvalidPercentage)
	assert.ErrorIs(t, control.New().StartRollout(ctx, "v2", "v1", 101),
		control.ErrInvalidPercentage)
}

func TestStartRolloutAfterTerminalState(t *testing.T) {
	c := control.New()
	ctx := context.Background()

	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 10))
	require.NoError(t, c.Promote(ctx))
	require.Equal(t, control.Live, c.Status().State)

	// Live is terminal; the next ramp is a fresh rollout.
	require.NoError(t, c.StartRollout(ctx, "v3", "v2", 1))
	s := c.Status()
	assert.Equal(t, control.Ramping, s.State)
	assert.Equal(t, "v3", s.Candidate)
	assert.Equal(t, "v2", s.Baseline)
}

func TestSetPercentage(t *testing.T) {
	c := control.New()
	ctx := context.Background()

	err := c.SetPercentage(ctx, 10)
	assert.ErrorIs(t, err, control.ErrInvalidTransition)

	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 5))
	require.NoError(t, c.SetPercentage(ctx, 50))
	s := c.Status()
	assert.Equal(t, 50, s.Percentage)
	assert.Equal(t, control.Ramping, s.State)

	assert.ErrorIs(t, c.SetPercentage(ctx, 101), control.ErrInvalidPercentage)
	assert.ErrorIs(t, c.SetPercentage(ctx, -1), control.ErrInvalidPercentage)
	assert.Equal(t, 50, c.Status().Percentage)
}

func TestSetPercentageZeroPauses(t *testing.T) {
	c := control.New()
	ctx := context.Background()

	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 25))
	require.NoError(t, c.SetPercentage(ctx, 0))

	// Zero pauses the ramp, it does not abort it.
	s := c.Status()
	assert.Equal(t, control.Ramping, s.State)
	assert.Equal(t, 0, s.Percentage)

	require.NoError(t, c.SetPercentage(ctx, 10))
	assert.Equal(t, 10, c.Status().Percentage)
}

func TestPromote(t *testing.T) {
	c := control.New()
	ctx := context.Background()

	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 25))
	require.NoError(t, c.Promote(ctx))
	s := c.Status()
	assert.Equal(t, control.Live, s.State)
	assert.Equal(t, 100, s.Percentage)

	// No further adjustments once live.
	assert.ErrorIs(t, c.SetPercentage(ctx, 50), control.ErrInvalidTransition)
}

func TestRollback(t *testing.T) {
	e := newFakeEvictor()
	c := control.New(control.WithEvictor(e))
	ctx := context.Background()

	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 40))
	require.NoError(t, c.Rollback(ctx))

	s := c.Status()
	assert.Equal(t, control.RolledBack, s.State)
	assert.Equal(t, 0, s.Percentage)
	assert.Equal(t, "v2", s.Candidate)

	assert.Equal(t, []string{"v2"}, e.wait(t))
}

func TestRollbackFromLive(t *testing.T) {
	e := newFakeEvictor()
	c := control.New(control.WithEvictor(e))
	ctx := context.Background()

	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 10))
	require.NoError(t, c.Promote(ctx))
	require.NoError(t, c.Rollback(ctx))

	assert.Equal(t, control.RolledBack, c.Status().State)
	assert.Equal(t, []string{"v2"}, e.wait(t))
}

func TestRollbackInvalid(t *testing.T) {
	c := control.New()
	ctx := context.Background()

	assert.ErrorIs(t, c.Rollback(ctx), control.ErrInvalidTransition)

	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 10))
	require.NoError(t, c.Rollback(ctx))
	assert.ErrorIs(t, c.Rollback(ctx), control.ErrInvalidTransition)
}

func TestDecisionInputNotTorn(t *testing.T) {
	c := control.New()
	ctx := context.Background()
	require.NoError(t, c.StartRollout(ctx, "v2", "v1", 0))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pct := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			pct = (pct + 1) % 100
			_ = c.SetPercentage(ctx, pct)
		}
	}()

	// Readers must always observe a consistent candidate/baseline pair no
	// matter how the writer interleaves.
	for i := 0; i < 10000; i++ {
		s := c.DecisionInput()
		require.Equal(t, "v2", s.Candidate)
		require.Equal(t, "v1", s.Baseline)
		require.GreaterOrEqual(t, s.Percentage, 0)
		require.LessOrEqual(t, s.Percentage, 100)
	}
	close(stop)
	wg.Wait()
}
