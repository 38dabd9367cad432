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

// Package config contains the configuration of the canarygate router.
package config

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/canarygate/canarygate/pkg/log"
	"github.com/canarygate/canarygate/pkg/private/serrors"
	"github.com/canarygate/canarygate/pkg/private/util"
	"github.com/canarygate/canarygate/private/config"
	"github.com/canarygate/canarygate/private/env"
	"github.com/canarygate/canarygate/router/assignment"
	api "github.com/canarygate/canarygate/router/mgmtapi"
)

// Assignment store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Default values for the router configuration.
const (
	DefaultAddr            = ":8080"
	DefaultCleanupInterval = 10 * time.Minute
)

var _ config.Config = (*Config)(nil)

// Config is the canarygate router configuration.
type Config struct {
	General env.General `toml:"general,omitempty"`
	Logging log.Config  `toml:"log,omitempty"`
	Metrics env.Metrics `toml:"metrics,omitempty"`
	Tracing env.Tracing `toml:"tracing,omitempty"`
	API     api.Config  `toml:"api,omitempty"`
	Router  Router      `toml:"router,omitempty"`
}

func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Tracing,
		&cfg.API,
		&cfg.Router,
	)
}

func (cfg *Config) Validate() error {
	return config.ValidateAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Tracing,
		&cfg.API,
		&cfg.Router,
	)
}

func (cfg *Config) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteSample(dst, path, config.CtxMap{config.ID: idSample},
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Tracing,
		&cfg.API,
		&cfg.Router,
	)
}

func (cfg *Config) ConfigName() string {
	return "canarygate_config"
}

// Router contains the router specific config.
type Router struct {
	// Addr is the address the edge listener serves traffic on.
	Addr string `toml:"addr,omitempty"`
	// Backend selects the assignment store backend (memory|sqlite).
	Backend string `toml:"backend,omitempty"`
	// DBPath is the path of the SQLite database. Required for the sqlite
	// backend.
	DBPath string `toml:"db_path,omitempty"`
	// AssignmentTTL is how long a sticky binding lives after its last use.
	AssignmentTTL util.DurWrap `toml:"assignment_ttl,omitempty"`
	// CleanupInterval is the period of the expired-assignment cleaner.
	CleanupInterval util.DurWrap `toml:"cleanup_interval,omitempty"`
	// StoreTimeout bounds a single assignment store operation on the
	// request path.
	StoreTimeout util.DurWrap `toml:"store_timeout,omitempty"`
	// CookieName is the name of the sticky assignment cookie.
	CookieName string `toml:"cookie_name,omitempty"`
	// Upstreams maps version identifiers to backend URLs the edge listener
	// proxies to. If empty, the edge listener is not started.
	Upstreams map[string]string `toml:"upstreams,omitempty"`
}

func (cfg *Router) InitDefaults() {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	if cfg.AssignmentTTL.Duration == 0 {
		cfg.AssignmentTTL.Duration = assignment.DefaultTTL
	}
	if cfg.CleanupInterval.Duration == 0 {
		cfg.CleanupInterval.Duration = DefaultCleanupInterval
	}
}

func (cfg *Router) Validate() error {
	switch cfg.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.DBPath == "" {
			return serrors.New("db_path must be set for the sqlite backend")
		}
	default:
		return serrors.New("unknown assignment store backend", "backend", cfg.Backend)
	}
	if cfg.AssignmentTTL.Duration <= 0 {
		return serrors.New("assignment_ttl must be positive")
	}
	if cfg.CleanupInterval.Duration <= 0 {
		return serrors.New("cleanup_interval must be positive")
	}
	for version, raw := range cfg.Upstreams {
		u, err := url.Parse(raw)
		if err != nil {
			return serrors.Wrap("parsing upstream url", err, "version", version)
		}
		if u.Scheme == "" || u.Host == "" {
			return serrors.New("upstream url needs scheme and host",
				"version", version, "url", raw)
		}
	}
	return nil
}

func (cfg *Router) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteString(dst, fmt.Sprintf(routerSample, DefaultAddr))
}

func (cfg *Router) ConfigName() string {
	return "router"
}
