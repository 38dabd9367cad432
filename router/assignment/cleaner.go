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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/canarygate/canarygate/pkg/log"
	"github.com/canarygate/canarygate/private/periodic"
)

var _ periodic.Task = (*Cleaner)(nil)

// Cleaner is a periodic.Task that deletes expired assignments.
type Cleaner struct {
	store   Store
	metrics CleanerMetrics
}

// CleanerMetrics contains the metrics for a cleaner.
type CleanerMetrics struct {
	// ErrorsTotal reports the total number of errors during cleaning.
	ErrorsTotal prometheus.Counter
	// DeletedTotal reports the total number of deleted bindings.
	DeletedTotal prometheus.Counter
}

// NewCleaner returns a cleaner task that deletes expired assignments from the
// store.
func NewCleaner(store Store, metrics CleanerMetrics) *Cleaner {
	return &Cleaner{
		store:   store,
		metrics: metrics,
	}
}

// Name returns the tasks name.
func (c *Cleaner) Name() string {
	return "assignment_cleaner"
}

// Run deletes expired assignments.
func (c *Cleaner) Run(ctx context.Context) {
	count, err := c.store.DeleteExpired(ctx)
	logger := log.FromCtx(ctx)
	if err != nil {
		logger.Error("Failed to delete expired assignments", "err", err)
		if c.metrics.ErrorsTotal != nil {
			c.metrics.ErrorsTotal.Inc()
		}
		return
	}
	if count > 0 {
		logger.Debug("Deleted expired assignments", "count", count)
		if c.metrics.DeletedTotal != nil {
			c.metrics.DeletedTotal.Add(float64(count))
		}
	}
}
