// Copyright 2024 The kcgi-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kcgilog is the structured logging entry point shared by
// every kcgi-go process role. It wraps go.uber.org/zap the way Caddy's
// own logging.go does: one process-wide *zap.Logger, built once at
// startup and handed down to every package that needs it, rather than
// each package reaching for a global.
package kcgilog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the destination and verbosity of a process's logger.
type Config struct {
	// Debug enables human-readable console output at debug level;
	// otherwise the logger emits JSON at info level, suited to a
	// log aggregator.
	Debug bool
	// Role tags every entry from this process ("worker", "control",
	// "manager"), so a single aggregated stream can be split back
	// out by the process that produced each line.
	Role string
}

// New builds the *zap.Logger a process role uses for its lifetime.
func New(cfg Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Debug {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	if cfg.Role != "" {
		logger = logger.With(zap.String("role", cfg.Role))
	}
	return logger, nil
}

// Nop is a logger that discards everything, used by package-level
// defaults and in tests that don't care about log output.
func Nop() *zap.Logger { return zap.NewNop() }

// Fallback is installed as the process logger if New fails during
// startup (e.g. an unwritable log path); it writes to stderr in the
// plainest form zap supports so operators still see something.
func Fallback() *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		zapcore.InfoLevel,
	)
	return zap.New(core)
}
