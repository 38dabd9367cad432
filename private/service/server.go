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

package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/canarygate/canarygate/pkg/log"
	"github.com/canarygate/canarygate/pkg/private/serrors"
	"github.com/canarygate/canarygate/private/worker"
)

// HTTPServer runs an http.Server with idempotent Run/Close semantics. Run
// blocks until the server stops; Close drains in-flight requests.
type HTTPServer struct {
	// Name identifies the server in logs.
	Name string
	// Server is the wrapped http server. Must be set before Run.
	Server *http.Server

	wkr worker.Base
}

// Run starts the server. It returns when the server stops, with a nil error
// if it was stopped by Close.
func (s *HTTPServer) Run(ctx context.Context) error {
	return s.wkr.RunWrapper(ctx, nil, s.run)
}

func (s *HTTPServer) run(ctx context.Context) error {
	log.FromCtx(ctx).Info("Server listening", "name", s.Name, "addr", s.Server.Addr)
	err := s.Server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return serrors.Wrap("serving", err, "name", s.Name)
	}
	return nil
}

// Close shuts the server down, draining in-flight requests until the context
// expires.
func (s *HTTPServer) Close(ctx context.Context) error {
	return s.wkr.CloseWrapper(ctx, func(ctx context.Context) error {
		return s.Server.Shutdown(ctx)
	})
}
