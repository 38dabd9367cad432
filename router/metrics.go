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

package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/canarygate/canarygate/router/assignment"
	"github.com/canarygate/canarygate/router/control"
)

// Metrics defines the data-plane and control-plane metrics of the router.
type Metrics struct {
	DecisionsTotal          *prometheus.CounterVec
	AssignmentsCreatedTotal prometheus.Counter
	AssignmentsEvictedTotal prometheus.Counter
	StoreErrorsTotal        *prometheus.CounterVec
	RolloutPercentage       prometheus.Gauge
	RolloutTransitionsTotal *prometheus.CounterVec
	CleanerErrorsTotal      prometheus.Counter
	CleanerDeletedTotal     prometheus.Counter
}

// NewMetrics initializes the metrics for the router and registers them with
// the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_decisions_total",
				Help: "Total number of routing decisions",
			},
			[]string{"version", "reason"},
		),
		AssignmentsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "router_assignments_created_total",
				Help: "Total number of sticky assignments created",
			},
		),
		AssignmentsEvictedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "router_assignments_evicted_total",
				Help: "Total number of sticky assignments evicted lazily on lookup",
			},
		),
		StoreErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_assignment_store_errors_total",
				Help: "Total number of assignment store failures degraded to cache misses",
			},
			[]string{"op"},
		),
		RolloutPercentage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "router_rollout_percentage",
				Help: "Current target percentage of traffic routed to the candidate",
			},
		),
		RolloutTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_rollout_transitions_total",
				Help: "Total number of rollout state transitions",
			},
			[]string{"state"},
		),
		CleanerErrorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "router_assignment_cleaner_errors_total",
				Help: "Total number of errors during expired assignment cleaning",
			},
		),
		CleanerDeletedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "router_assignment_cleaner_deleted_total",
				Help: "Total number of expired assignments deleted",
			},
		),
	}
}

// ControlMetrics returns the subset of metrics consumed by the rollout
// controller.
func (m *Metrics) ControlMetrics() control.Metrics {
	if m == nil {
		return control.Metrics{}
	}
	return control.Metrics{
		Percentage:  m.RolloutPercentage,
		Transitions: m.RolloutTransitionsTotal,
	}
}

// CleanerMetrics returns the subset of metrics consumed by the assignment
// cleaner.
func (m *Metrics) CleanerMetrics() assignment.CleanerMetrics {
	if m == nil {
		return assignment.CleanerMetrics{}
	}
	return assignment.CleanerMetrics{
		ErrorsTotal:  m.CleanerErrorsTotal,
		DeletedTotal: m.CleanerDeletedTotal,
	}
}
