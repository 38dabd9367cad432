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

package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	libconfig "github.com/canarygate/canarygate/private/config"
)

func TestConfigSampleRoundtrip(t *testing.T) {
	var sample bytes.Buffer
	var origin Config
	origin.Sample(&sample, nil, nil)

	var cfg Config
	require.NoError(t, libconfig.Decode(sample.Bytes(), &cfg))
	cfg.InitDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "canarygate-1", cfg.General.ID)
	assert.Equal(t, BackendMemory, cfg.Router.Backend)
	assert.Equal(t, 12*time.Hour, cfg.Router.AssignmentTTL.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Router.CleanupInterval.Duration)
	assert.Equal(t, "canary_assignment", cfg.Router.CookieName)
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.InitDefaults()

	assert.Equal(t, DefaultAddr, cfg.Router.Addr)
	assert.Equal(t, BackendMemory, cfg.Router.Backend)
	assert.Equal(t, 12*time.Hour, cfg.Router.AssignmentTTL.Duration)
	assert.Equal(t, DefaultCleanupInterval, cfg.Router.CleanupInterval.Duration)
	assert.Equal(t, "info", cfg.Logging.Console.Level)
}

func TestConfigValidate(t *testing.T) {
	newValid := func() Config {
		var cfg Config
		cfg.InitDefaults()
		cfg.General.ID = "canarygate-1"
		return cfg
	}

	cfg := newValid()
	require.NoError(t, cfg.Validate())

	cfg = newValid()
	cfg.General.ID = ""
	assert.Error(t, cfg.Validate())

	cfg = newValid()
	cfg.Router.Backend = "bogus"
	assert.Error(t, cfg.Validate())

	cfg = newValid()
	cfg.Router.Backend = BackendSQLite
	assert.Error(t, cfg.Validate(), "sqlite backend requires db_path")
	cfg.Router.DBPath = "/var/lib/canarygate/assignments.db"
	assert.NoError(t, cfg.Validate())

	cfg = newValid()
	cfg.Router.AssignmentTTL.Duration = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = newValid()
	cfg.Router.Upstreams = map[string]string{"v1": "not a url"}
	assert.Error(t, cfg.Validate())

	cfg = newValid()
	cfg.Router.Upstreams = map[string]string{
		"v1": "http://127.0.0.1:9001",
		"v2": "http://127.0.0.1:9002",
	}
	assert.NoError(t, cfg.Validate())

	cfg = newValid()
	cfg.Logging.Console.Level = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestUnknownFieldRejected(t *testing.T) {
	raw := []byte(`
[general]
id = "canarygate-1"

[bogus]
key = true
`)
	var cfg Config
	assert.Error(t, libconfig.Decode(raw, &cfg))
}
