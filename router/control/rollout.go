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

// Package control holds the authoritative rollout state for a
// candidate/baseline version pair and enforces valid state transitions.
//
// The request path reads the state far more often than the control plane
// writes it. Reads take an immutable copy-on-write snapshot through an atomic
// pointer and never block behind an operator update; writes are serialized by
// a mutex.
package control

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/canarygate/canarygate/pkg/log"
	"github.com/canarygate/canarygate/pkg/private/serrors"
)

// State is the lifecycle state of a rollout.
type State int

// The rollout states. Idle is initial; Live and RolledBack are terminal and
// require starting a new rollout for another ramp.
const (
	Idle State = iota
	Ramping
	Live
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ramping:
		return "ramping"
	case Live:
		return "live"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Errors returned by the controller. All invalid transitions are rejected
// synchronously; no transition is ever silently ignored.
var (
	// ErrInvalidState indicates a rollout is already active.
	ErrInvalidState = errors.New("rollout already active")
	// ErrInvalidTransition indicates an operation that is not valid in the
	// current state.
	ErrInvalidTransition = errors.New("invalid rollout transition")
	// ErrInvalidPercentage indicates a percentage outside [0, 100].
	ErrInvalidPercentage = errors.New("percentage out of range")
)

// Snapshot is an immutable view of the rollout state. A single read never
// observes a torn update across candidate/baseline/percentage.
type Snapshot struct {
	// Candidate is the version being ramped in.
	Candidate string `json:"candidate"`
	// Baseline is the previous stable version being ramped out.
	Baseline string `json:"baseline"`
	// Percentage is the share of new traffic in [0, 100] routed to the
	// candidate.
	Percentage int `json:"percentage"`
	// State is the lifecycle state of the rollout.
	State State `json:"-"`
	// UpdatedAt is the time of the last change.
	UpdatedAt time.Time `json:"updated_at"`
}

// Evictor removes sticky assignments bound to a version. Rollback uses it to
// stop serving a withdrawn candidate; this is the one synchronization point
// between the controller and the assignment store.
type Evictor interface {
	EvictVersion(ctx context.Context, version string) (int, error)
}

// Metrics contains the control-plane metrics. Nil fields are ignored.
type Metrics struct {
	// Percentage reports the current target percentage.
	Percentage prometheus.Gauge
	// Transitions counts state transitions, labeled by resulting state.
	Transitions *prometheus.CounterVec
}

// Controller is the single writer of the rollout state. The zero value is
// not usable; construct with New.
type Controller struct {
	// mu serializes control-plane mutations so the candidate/baseline/
	// percentage triple is never updated piecewise.
	mu      sync.Mutex
	snap    atomic.Pointer[Snapshot]
	evictor Evictor
	metrics Metrics

	// evictTimeout bounds the background eviction sweep after rollback.
	evictTimeout time.Duration
}

// Option configures the controller.
type Option func(*Controller)

// WithEvictor registers the assignment evictor invoked on rollback.
func WithEvictor(e Evictor) Option {
	return func(c *Controller) {
		c.evictor = e
	}
}

// WithMetrics registers control-plane metrics.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New creates a controller in the Idle state.
func New(opts ...Option) *Controller {
	c := &Controller{
		evictTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.Store(&Snapshot{State: Idle, UpdatedAt: time.Now()})
	return c
}

// DecisionInput returns the read-only snapshot consumed by the routing
// decision function. It never blocks behind a concurrent write.
func (c *Controller) DecisionInput() Snapshot {
	return *c.snap.Load()
}

// Status returns the current rollout state snapshot.
func (c *Controller) Status() Snapshot {
	return *c.snap.Load()
}

// StartRollout begins ramping candidate against baseline at the initial
// percentage. It fails with ErrInvalidState if a rollout is already active.
func (c *Controller) StartRollout(
	ctx context.Context,
	candidate, baseline string,
	initial int,
) error {
	if candidate == "" || baseline == "" {
		return serrors.New("version identifiers must not be empty",
			"candidate", candidate, "baseline", baseline)
	}
	if candidate == baseline {
		return serrors.New("candidate and baseline must differ", "version", candidate)
	}
	if initial < 0 || initial > 100 {
		return serrors.Join(ErrInvalidPercentage, nil, "percentage", initial)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.snap.Load()
	if cur.State == Ramping {
		return serrors.Join(ErrInvalidState, nil,
			"candidate", cur.Candidate, "baseline", cur.Baseline)
	}
	next := Ramping
	if initial == 100 {
		next = Live
	}
	c.publishLocked(Snapshot{
		Candidate:  candidate,
		Baseline:   baseline,
		Percentage: initial,
		State:      next,
	})
	log.FromCtx(ctx).Info("Rollout started",
		"candidate", candidate, "baseline", baseline, "percentage", initial)
	return nil
}

// SetPercentage adjusts the target percentage. It is valid only while
// ramping. Setting 100 promotes the candidate and transitions to Live.
// Setting 0 pauses the ramp but does not terminate it; aborting requires an
// explicit Rollback.
func (c *Controller) SetPercentage(ctx context.Context, pct int) error {
	if pct < 0 || pct > 100 {
		return serrors.Join(ErrInvalidPercentage, nil, "percentage", pct)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.snap.Load()
	if cur.State != Ramping {
		return serrors.Join(ErrInvalidTransition, nil,
			"op", "set_percentage", "state", cur.State)
	}
	next := cur.State
	if pct == 100 {
		next = Live
	}
	c.publishLocked(Snapshot{
		Candidate:  cur.Candidate,
		Baseline:   cur.Baseline,
		Percentage: pct,
		State:      next,
	})
	log.FromCtx(ctx).Info("Rollout percentage updated",
		"candidate", cur.Candidate, "percentage", pct, "state", next.String())
	return nil
}

// Promote fully promotes the candidate. It is an alias for SetPercentage(100).
func (c *Controller) Promote(ctx context.Context) error {
	return c.SetPercentage(ctx, 100)
}

// Rollback aborts the rollout: the percentage is forced to 0, the state
// becomes RolledBack, and sticky assignments bound to the candidate are
// evicted by a background sweep. Valid from Ramping or Live.
func (c *Controller) Rollback(ctx context.Context) error {
	c.mu.Lock()
	cur := c.snap.Load()
	if cur.State != Ramping && cur.State != Live {
		c.mu.Unlock()
		return serrors.Join(ErrInvalidTransition, nil,
			"op", "rollback", "state", cur.State)
	}
	candidate := cur.Candidate
	c.publishLocked(Snapshot{
		Candidate:  cur.Candidate,
		Baseline:   cur.Baseline,
		Percentage: 0,
		State:      RolledBack,
	})
	c.mu.Unlock()

	log.FromCtx(ctx).Info("Rollout rolled back", "candidate", candidate)
	if c.evictor != nil {
		// Partial progress is fine: the decision function already forces
		// baseline for a rolled back candidate while stale bindings linger.
		go func() {
			defer log.HandlePanic()
			sweepCtx, cancel := context.WithTimeout(context.Background(), c.evictTimeout)
			defer cancel()
			cnt, err := c.evictor.EvictVersion(sweepCtx, candidate)
			if err != nil {
				log.Error("Evicting candidate assignments failed",
					"candidate", candidate, "err", err)
				return
			}
			log.Info("Evicted candidate assignments",
				"candidate", candidate, "count", cnt)
		}()
	}
	return nil
}

// publishLocked swaps in a new snapshot. Must be called with mu held.
func (c *Controller) publishLocked(next Snapshot) {
	next.UpdatedAt = time.Now()
	c.snap.Store(&next)
	if c.metrics.Percentage != nil {
		c.metrics.Percentage.Set(float64(next.Percentage))
	}
	if c.metrics.Transitions != nil {
		c.metrics.Transitions.WithLabelValues(next.State.String()).Inc()
	}
}
