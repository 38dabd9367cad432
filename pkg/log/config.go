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

package log

import (
	"io"

	"go.uber.org/zap/zapcore"

	"github.com/canarygate/canarygate/pkg/private/serrors"
	"github.com/canarygate/canarygate/private/config"
)

var _ config.Config = (*Config)(nil)

// Validate validates the logging configuration.
func (c *Config) Validate() error {
	return c.Console.validate()
}

// Sample writes the sample configuration to the given writer.
func (c *Config) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteSample(dst, path, ctx, &c.Console)
}

// ConfigName returns the name this config should have in a struct embedding.
func (c *Config) ConfigName() string {
	return "log"
}

// Sample writes the sample configuration to the given writer.
func (c *ConsoleConfig) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteString(dst, consoleSample)
}

// ConfigName returns the name this config should have in a struct embedding.
func (c *ConsoleConfig) ConfigName() string {
	return "console"
}

func (c *ConsoleConfig) validate() error {
	var lvl zapcore.Level
	if c.Level != "" {
		if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
			return serrors.Wrap("invalid console log level", err, "level", c.Level)
		}
	}
	switch c.Format {
	case "", "human", "json":
	default:
		return serrors.New("invalid console log format", "format", c.Format)
	}
	if c.StacktraceLevel != "" && c.StacktraceLevel != "none" {
		if err := lvl.UnmarshalText([]byte(c.StacktraceLevel)); err != nil {
			return serrors.Wrap("invalid stacktrace level", err,
				"level", c.StacktraceLevel)
		}
	}
	return nil
}

const consoleSample = `
# Console logging level (debug|info|error) (default info)
level = "info"

# Format of the console logging (human|json) (default human)
format = "human"

# Level from which on stacktraces are included in the log
# (none|error) (default none)
stacktrace_level = "none"
`
