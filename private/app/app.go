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

// Package app provides helpers for applications.
package app

import (
	"github.com/canarygate/canarygate/pkg/private/serrors"
)

// Cleanup collects cleanup functions that are run on shutdown.
type Cleanup struct {
	funcs []func() error
}

// Add adds a cleanup function.
func (c *Cleanup) Add(f func() error) {
	c.funcs = append(c.funcs, f)
}

// Do runs all cleanup functions. All functions run, the first error is
// returned.
func (c *Cleanup) Do() error {
	var firstErr error
	for _, f := range c.funcs {
		if err := f(); err != nil && firstErr == nil {
			firstErr = serrors.Wrap("running cleanup", err)
		}
	}
	return firstErr
}
