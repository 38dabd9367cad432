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
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/canarygate/canarygate/pkg/bucket"
	"github.com/canarygate/canarygate/pkg/log"
	"github.com/canarygate/canarygate/router/assignment"
)

// HTTP surface of the middleware.
const (
	// DefaultCookieName is the sticky assignment cookie. Its value is the
	// bound version identifier.
	DefaultCookieName = "canary_assignment"
	// OverrideHeader pins a version for a single request. On responses the
	// same header reports the version that served the request.
	OverrideHeader = "X-Canary-Version"
	// UserIDHeader carries the authenticated user id set by an upstream
	// auth layer.
	UserIDHeader = "X-User-ID"
)

type decisionCtxKey struct{}

// DecisionFromCtx returns the routing decision stored in the request
// context by the middleware.
func DecisionFromCtx(ctx context.Context) (Decision, bool) {
	dec, ok := ctx.Value(decisionCtxKey{}).(Decision)
	return dec, ok
}

// Middleware adapts the data plane to net/http. It resolves the client
// identity, routes the request, sets the sticky cookie and tags the
// response with the serving version.
type Middleware struct {
	DataPlane *DataPlane
	// CookieName defaults to DefaultCookieName.
	CookieName string
	// CookieTTL defaults to assignment.DefaultTTL.
	CookieTTL time.Duration
}

// Wrap returns a handler that routes each request before invoking next.
// The decision is available to next via DecisionFromCtx. Routing trouble
// never fails the request; it is served untagged.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			ClientID: m.clientID(r),
			Override: r.Header.Get(OverrideHeader),
		}
		if c, err := r.Cookie(m.cookieName()); err == nil {
			req.StickyHint = c.Value
		}
		dec, err := m.DataPlane.Route(r.Context(), req)
		if err != nil {
			log.FromCtx(r.Context()).Debug("Routing failed, serving untagged", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if dec.NewBinding {
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName(),
				Value:    dec.Version,
				Path:     "/",
				MaxAge:   int(m.cookieTTL().Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		if dec.Version != "" {
			w.Header().Set(OverrideHeader, dec.Version)
		}
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), decisionCtxKey{}, dec)))
	})
}

// clientID resolves the client identity: the authenticated user id if the
// auth layer provided one, otherwise a hash of remote IP and User-Agent.
func (m *Middleware) clientID(r *http.Request) string {
	if id := r.Header.Get(UserIDHeader); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("anon-%08x", bucket.Sum(host+"|"+r.UserAgent()))
}

func (m *Middleware) cookieName() string {
	if m.CookieName != "" {
		return m.CookieName
	}
	return DefaultCookieName
}

func (m *Middleware) cookieTTL() time.Duration {
	if m.CookieTTL > 0 {
		return m.CookieTTL
	}
	return assignment.DefaultTTL
}
