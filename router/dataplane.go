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

// Package router implements the request-path decision engine for canary
// releases: given a client identifier and the current rollout state, it
// picks the release version that serves the request.
//
// Decision priority is override, then sticky assignment, then fresh
// bucketing. The decision path never fails on assignment store trouble;
// store errors degrade to a cache miss and the request re-buckets.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/canarygate/canarygate/pkg/bucket"
	"github.com/canarygate/canarygate/pkg/log"
	"github.com/canarygate/canarygate/pkg/private/serrors"
	"github.com/canarygate/canarygate/router/assignment"
	"github.com/canarygate/canarygate/router/control"
)

// DefaultStoreTimeout bounds a single assignment store operation on the
// request path.
const DefaultStoreTimeout = 50 * time.Millisecond

// Reason records which rule produced a decision.
type Reason string

// The decision reasons.
const (
	ReasonOverride Reason = "override"
	ReasonSticky   Reason = "sticky"
	ReasonBucketed Reason = "bucketed"
)

// Request is the routing-relevant part of an incoming request.
type Request struct {
	// ClientID identifies the client. Must not be empty.
	ClientID string
	// Override pins a version for this request only. Never persisted.
	Override string
	// StickyHint is the version from the client-side assignment cookie, if
	// any. It is verified against the rollout state before use and only
	// consulted when the server-side store has no binding.
	StickyHint string
}

// Decision is the outcome of routing a single request. It is not persisted;
// the sticky binding it may have created is.
type Decision struct {
	ClientID string
	Version  string
	Reason   Reason
	// NewBinding instructs the transport adapter to set the sticky cookie.
	NewBinding bool
}

// DecisionSource provides an atomic snapshot of the rollout state.
type DecisionSource interface {
	DecisionInput() control.Snapshot
}

// DataPlane routes requests. All fields must be set before use, except
// Metrics and StoreTimeout which have working zero values.
type DataPlane struct {
	Source DecisionSource
	Store  assignment.Store
	// Metrics may be nil, in which case no metrics are reported.
	Metrics *Metrics
	// StoreTimeout bounds each store operation. Defaults to
	// DefaultStoreTimeout.
	StoreTimeout time.Duration
}

// Route produces the routing decision for a request.
//
// When no rollout is configured the returned decision carries an empty
// version; the adapter serves the request untagged. Route returns an error
// only for invalid input, never for store trouble.
func (d *DataPlane) Route(ctx context.Context, req Request) (Decision, error) {
	if req.ClientID == "" {
		return Decision{}, serrors.Join(bucket.ErrInvalidInput, nil,
			"reason", "empty client id")
	}
	snap := d.Source.DecisionInput()

	if req.Override != "" {
		return d.emit(ctx, Decision{
			ClientID: req.ClientID,
			Version:  req.Override,
			Reason:   ReasonOverride,
		}), nil
	}
	if snap.State == control.Idle {
		return Decision{ClientID: req.ClientID, Reason: ReasonBucketed}, nil
	}

	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout())
	defer cancel()

	if version, ok := d.sticky(sctx, req, snap); ok {
		return d.emit(ctx, Decision{
			ClientID: req.ClientID,
			Version:  version,
			Reason:   ReasonSticky,
		}), nil
	}

	b, err := bucket.Of(req.ClientID)
	if err != nil {
		return Decision{}, err
	}
	pct := snap.Percentage
	if snap.State != control.Ramping && snap.State != control.Live {
		// Rolled back or unknown defaults to baseline.
		pct = 0
	}
	version := snap.Baseline
	if b < pct {
		version = snap.Candidate
	}
	if err := d.Store.Put(sctx, req.ClientID, version); err != nil {
		// The cookie set by the adapter still carries the binding.
		d.storeError(ctx, "put", err)
	} else if d.Metrics != nil {
		d.Metrics.AssignmentsCreatedTotal.Inc()
	}
	return d.emit(ctx, Decision{
		ClientID:   req.ClientID,
		Version:    version,
		Reason:     ReasonBucketed,
		NewBinding: true,
	}), nil
}

// sticky resolves an existing sticky binding, first from the server-side
// store, then from the client-side hint. Bindings to retired versions are
// ignored and lazily evicted.
func (d *DataPlane) sticky(ctx context.Context, req Request, snap control.Snapshot) (string, bool) {
	a, ok, err := d.Store.Get(ctx, req.ClientID)
	if err != nil {
		d.storeError(ctx, "get", err)
		ok = false
	}
	if ok {
		if stickyValid(a.Version, snap) {
			return a.Version, true
		}
		if err := d.Store.Evict(ctx, req.ClientID); err != nil {
			d.storeError(ctx, "evict", err)
		} else if d.Metrics != nil {
			d.Metrics.AssignmentsEvictedTotal.Inc()
		}
		return "", false
	}
	if req.StickyHint != "" && stickyValid(req.StickyHint, snap) {
		// The cookie backs the binding when the store lost or never had it.
		if err := d.Store.Put(ctx, req.ClientID, req.StickyHint); err != nil {
			d.storeError(ctx, "put", err)
		}
		return req.StickyHint, true
	}
	return "", false
}

// stickyValid reports whether a bound version may still serve traffic.
// Baseline bindings age out naturally; candidate bindings die with a
// rollback.
func stickyValid(version string, snap control.Snapshot) bool {
	if version == snap.Baseline {
		return true
	}
	if version == snap.Candidate {
		return snap.State == control.Ramping || snap.State == control.Live
	}
	return false
}

// emit reports the decision event and metrics. The client identifier is
// hashed before logging.
func (d *DataPlane) emit(ctx context.Context, dec Decision) Decision {
	if d.Metrics != nil {
		d.Metrics.DecisionsTotal.WithLabelValues(dec.Version, string(dec.Reason)).Inc()
	}
	logger := log.FromCtx(ctx)
	if logger.Enabled(log.DebugLevel) {
		logger.Debug("Routing decision",
			"client", fmt.Sprintf("%08x", bucket.Sum(dec.ClientID)),
			"version", dec.Version,
			"reason", dec.Reason,
		)
	}
	return dec
}

func (d *DataPlane) storeError(ctx context.Context, op string, err error) {
	if d.Metrics != nil {
		d.Metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	}
	log.FromCtx(ctx).Debug("Assignment store degraded", "op", op, "err", err)
}

func (d *DataPlane) storeTimeout() time.Duration {
	if d.StoreTimeout > 0 {
		return d.StoreTimeout
	}
	return DefaultStoreTimeout
}
