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

// Package log provides a thin wrapper around zap with a key/value style
// logging API and context plumbing.
package log

import (
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/canarygate/canarygate/pkg/private/serrors"
)

// Default logging configuration values.
const (
	DefaultConsoleLevel    = "info"
	DefaultStacktraceLevel = "none"
)

// Logger describes the logger interface.
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

// Level is the log level.
type Level zapcore.Level

// The different log levels.
const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)

type logger struct {
	logger *zap.SugaredLogger
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(ctx...)}
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.logger.Debugw(msg, ctx...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.logger.Infow(msg, ctx...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.logger.Errorw(msg, ctx...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Desugar().Core().Enabled(zapcore.Level(lvl))
}

func (l *logger) WithOptions(opts ...zap.Option) Logger {
	return &logger{logger: l.logger.Desugar().WithOptions(opts...).Sugar()}
}

var root *logger

func init() {
	// Applications are expected to call Setup. Until then, everything is
	// discarded so that library use without setup stays silent.
	root = &logger{logger: zap.NewNop().Sugar()}
	ConsoleLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
}

// Config is the configuration for the logger.
type Config struct {
	// Console is the configuration for the console logging.
	Console ConsoleConfig `toml:"console,omitempty"`
}

// InitDefaults populates unset fields to their default values.
func (c *Config) InitDefaults() {
	c.Console.InitDefaults()
}

// ConsoleConfig is the config for the console logger.
type ConsoleConfig struct {
	// Level of console logging (defaults to info).
	Level string `toml:"level,omitempty"`
	// Format of the console logging (human|json, defaults to human).
	Format string `toml:"format,omitempty"`
	// StacktraceLevel sets from which level stacktraces are included in the
	// log (none|error, defaults to none).
	StacktraceLevel string `toml:"stacktrace_level,omitempty"`
	// DisableCaller stops annotating logs with the calling function's file
	// name and line number.
	DisableCaller bool `toml:"disable_caller,omitempty"`
}

// InitDefaults populates unset fields to their default values.
func (c *ConsoleConfig) InitDefaults() {
	if c.Level == "" {
		c.Level = DefaultConsoleLevel
	}
	if c.Format == "" {
		c.Format = "human"
	}
	if c.StacktraceLevel == "" {
		c.StacktraceLevel = DefaultStacktraceLevel
	}
}

// Setup configures the logging framework from the provided config. It must be
// called exactly once, before any log output is produced.
func Setup(cfg Config, opts ...Option) error {
	cfg.InitDefaults()
	zlog, err := newZap(cfg.Console, applyOptions(opts))
	if err != nil {
		return err
	}
	root = &logger{logger: zlog.Sugar()}
	return nil
}

// ConsoleLevel is the log level of the console logger. It can be changed at
// runtime; its ServeHTTP method implements the GET/PUT log level endpoint.
var ConsoleLevel zap.AtomicLevel

func newZap(cfg ConsoleConfig, opts options) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, serrors.Wrap("parsing log level", err, "level", cfg.Level)
	}
	encoding := "json"
	encoderConfig := zap.NewProductionEncoderConfig()
	if strings.EqualFold(cfg.Format, "human") {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	ConsoleLevel = zap.NewAtomicLevelAt(level)
	zCfg := zap.Config{
		Level:             ConsoleLevel,
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	zapOpts := opts.zapOptions()
	if !strings.EqualFold(cfg.StacktraceLevel, "none") {
		var stacktraceLevel zapcore.Level
		if err := stacktraceLevel.UnmarshalText([]byte(cfg.StacktraceLevel)); err != nil {
			return nil, serrors.Wrap("parsing stacktrace level", err,
				"level", cfg.StacktraceLevel)
		}
		zCfg.DisableStacktrace = false
		zapOpts = append(zapOpts, zap.AddStacktrace(stacktraceLevel))
	}
	return zCfg.Build(zapOpts...)
}

// Root returns the root logger. It's guaranteed to never return nil.
func Root() Logger {
	return root
}

// New creates a logger with the given context, derived from the root logger.
func New(ctx ...any) Logger {
	if len(ctx) == 0 {
		return Root()
	}
	return Root().New(ctx...)
}

// Discard sets the logger up to discard all log entries. This is useful in
// tests.
func Discard() {
	root = &logger{logger: zap.NewNop().Sugar()}
}

// Flush writes the logs to the underlying buffer.
func Flush() error {
	return root.logger.Sync()
}

// Debug logs at debug level on the root logger.
func Debug(msg string, ctx ...any) {
	root.Debug(msg, ctx...)
}

// Info logs at info level on the root logger.
func Info(msg string, ctx ...any) {
	root.Info(msg, ctx...)
}

// Error logs at error level on the root logger.
func Error(msg string, ctx ...any) {
	root.Error(msg, ctx...)
}

// HandlePanic catches panics and logs them. Every goroutine should defer a
// call to HandlePanic as its first statement; panics that unwind a goroutine
// without one crash the process without a useful log entry.
func HandlePanic() {
	if msg := recover(); msg != nil {
		root.Error("Panic", "msg", msg, "stack", fmt.Sprintf("%s", debug.Stack()))
		_ = Flush()
		panic(msg)
	}
}
