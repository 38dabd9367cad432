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

// Package worker contains helpers for working with long-running goroutines
// that need to be started and stopped in a controlled way.
package worker

import (
	"context"
	"sync"

	"github.com/canarygate/canarygate/pkg/private/serrors"
)

// Base provides basic operations for objects designed to run as goroutines.
// It must not be copied after first use. The zero value is ready to use.
//
// Embed Base in the worker's struct, and wrap the worker's Run and Close
// logic in RunWrapper and CloseWrapper respectively.
type Base struct {
	mu sync.Mutex
	// runCalled is set once RunWrapper was invoked, to reject a second run.
	runCalled bool
	// closeCalled is set once CloseWrapper was invoked.
	closeCalled bool
	// doneChan is closed when the worker should shut down.
	doneChan chan struct{}
}

// RunWrapper runs the setup function followed by the run function, unless the
// worker was closed already in which case it returns nil without executing
// either. It returns an error if called more than once.
func (b *Base) RunWrapper(ctx context.Context, setup, run func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.runCalled {
		b.mu.Unlock()
		return serrors.New("run called more than once")
	}
	b.runCalled = true
	if b.closeCalled {
		b.mu.Unlock()
		return nil
	}
	b.initDoneChanLocked()
	b.mu.Unlock()

	if setup != nil {
		if err := setup(ctx); err != nil {
			return err
		}
	}
	if run == nil {
		return nil
	}
	return run(ctx)
}

// GetDoneChan returns a channel that is closed once the worker is closed.
func (b *Base) GetDoneChan() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initDoneChanLocked()
	return b.doneChan
}

// CloseWrapper closes the worker's done channel and, if the worker was
// started, runs the closer function. It is idempotent.
func (b *Base) CloseWrapper(ctx context.Context, closer func(ctx context.Context) error) error {
	b.mu.Lock()
	alreadyClosed := b.closeCalled
	b.closeCalled = true
	b.initDoneChanLocked()
	select {
	case <-b.doneChan:
	default:
		close(b.doneChan)
	}
	b.mu.Unlock()

	if alreadyClosed || closer == nil {
		return nil
	}
	return closer(ctx)
}

func (b *Base) initDoneChanLocked() {
	if b.doneChan == nil {
		b.doneChan = make(chan struct{})
	}
}
