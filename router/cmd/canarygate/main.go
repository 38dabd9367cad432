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

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	_ "net/http/pprof"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	opentracing "github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/canarygate/canarygate/pkg/log"
	"github.com/canarygate/canarygate/pkg/private/serrors"
	"github.com/canarygate/canarygate/private/app"
	"github.com/canarygate/canarygate/private/app/launcher"
	"github.com/canarygate/canarygate/private/env"
	"github.com/canarygate/canarygate/private/periodic"
	"github.com/canarygate/canarygate/private/service"
	"github.com/canarygate/canarygate/router"
	"github.com/canarygate/canarygate/router/assignment"
	"github.com/canarygate/canarygate/router/assignment/sqlite"
	"github.com/canarygate/canarygate/router/config"
	"github.com/canarygate/canarygate/router/control"
	api "github.com/canarygate/canarygate/router/mgmtapi"
)

var globalCfg config.Config

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "Canarygate Router",
		Main:       realMain,
	}
	application.Run()
}

func realMain(ctx context.Context) error {
	g, errCtx := errgroup.WithContext(ctx)
	metrics := router.NewMetrics()

	var cleanup app.Cleanup
	g.Go(func() error {
		defer log.HandlePanic()
		<-errCtx.Done()
		return cleanup.Do()
	})

	tracer, trCloser, err := globalCfg.Tracing.NewTracer(globalCfg.General.ID)
	if err != nil {
		return serrors.Wrap("initializing tracer", err)
	}
	opentracing.SetGlobalTracer(tracer)
	cleanup.Add(trCloser.Close)

	store, err := newStore()
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		cleanup.Add(closer.Close)
	}
	ctrl := control.New(
		control.WithEvictor(store),
		control.WithMetrics(metrics.ControlMetrics()),
	)
	dp := &router.DataPlane{
		Source:       ctrl,
		Store:        store,
		Metrics:      metrics,
		StoreTimeout: globalCfg.Router.StoreTimeout.Duration,
	}

	statusPages := service.StatusPages{
		"info":      service.NewInfoStatusPage(),
		"config":    service.NewConfigStatusPage(globalCfg),
		"log/level": service.NewLogLevelStatusPage(),
	}
	if err := statusPages.Register(http.DefaultServeMux, globalCfg.General.ID); err != nil {
		return err
	}

	// Initialize and start the control-plane API.
	if globalCfg.API.Addr != "" {
		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
		}))
		server := api.Server{
			Rollouts: ctrl,
			Config:   service.NewConfigStatusPage(globalCfg).Handler,
			Info:     service.NewInfoStatusPage().Handler,
			LogLevel: service.NewLogLevelStatusPage().Handler,
		}
		r.Mount("/api/v1", server.Handler())
		mgmtServer := &service.HTTPServer{
			Name: "mgmt",
			Server: &http.Server{
				Addr:    globalCfg.API.Addr,
				Handler: r,
			},
		}
		cleanup.Add(func() error { return shutdown(mgmtServer) })
		g.Go(func() error {
			defer log.HandlePanic()
			return mgmtServer.Run(errCtx)
		})
	}
	g.Go(func() error {
		defer log.HandlePanic()
		return globalCfg.Metrics.ServePrometheus(errCtx)
	})

	cleaner := periodic.Start(
		assignment.NewCleaner(store, metrics.CleanerMetrics()),
		globalCfg.Router.CleanupInterval.Duration,
		globalCfg.Router.CleanupInterval.Duration,
	)
	cleanup.Add(func() error { cleaner.Kill(); return nil })

	// Start the edge listener if upstreams are configured.
	if len(globalCfg.Router.Upstreams) > 0 {
		handler, err := edgeHandler(dp)
		if err != nil {
			return err
		}
		edgeServer := &service.HTTPServer{
			Name: "edge",
			Server: &http.Server{
				Addr:    globalCfg.Router.Addr,
				Handler: handler,
			},
		}
		cleanup.Add(func() error { return shutdown(edgeServer) })
		g.Go(func() error {
			defer log.HandlePanic()
			return edgeServer.Run(errCtx)
		})
	} else {
		log.Info("No upstreams configured, edge listener disabled")
	}

	return g.Wait()
}

// shutdown drains a server within the grace interval.
func shutdown(srv *service.HTTPServer) error {
	ctx, cancel := context.WithTimeout(context.Background(), env.ShutdownGraceInterval)
	defer cancel()
	return srv.Close(ctx)
}

func newStore() (assignment.Store, error) {
	switch globalCfg.Router.Backend {
	case config.BackendSQLite:
		backend, err := sqlite.New(
			globalCfg.Router.DBPath,
			globalCfg.Router.AssignmentTTL.Duration,
		)
		if err != nil {
			return nil, serrors.Wrap("opening assignment store", err)
		}
		return backend, nil
	default:
		return assignment.NewMemStore(globalCfg.Router.AssignmentTTL.Duration), nil
	}
}

// edgeHandler builds the middleware-wrapped reverse proxy that forwards each
// request to the upstream of its decided version.
func edgeHandler(dp *router.DataPlane) (http.Handler, error) {
	proxies := make(map[string]*httputil.ReverseProxy, len(globalCfg.Router.Upstreams))
	for version, raw := range globalCfg.Router.Upstreams {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, serrors.Wrap("parsing upstream url", err, "version", version)
		}
		proxies[version] = httputil.NewSingleHostReverseProxy(u)
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dec, _ := router.DecisionFromCtx(r.Context())
		proxy, ok := proxies[dec.Version]
		if !ok {
			// No rollout configured or no upstream for the version.
			proxy, ok = proxies["default"]
		}
		if !ok {
			http.Error(w, "no upstream for version", http.StatusBadGateway)
			return
		}
		proxy.ServeHTTP(w, r)
	})
	mw := &router.Middleware{
		DataPlane:  dp,
		CookieName: globalCfg.Router.CookieName,
		CookieTTL:  globalCfg.Router.AssignmentTTL.Duration,
	}
	return mw.Wrap(inner), nil
}
