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

// Package manager implements the supervisor process: it parses the
// deployment configuration, binds (or inherits) the listening socket,
// privilege-drops, and maintains a pool of self-reexec'd worker,
// control, and responder processes, restarting any that die. Grounded
// on the option parsing and process lifecycle of kfcgi.c's main().
package manager

import "time"

// Config mirrors kfcgi's command-line options, one field per flag:
// -n, -N, -l, -p, -s, -u, -U, -r, -w, -d, -v.
type Config struct {
	// Workers is the steady-state worker pool size (-n).
	Workers int
	// MaxWorkers is the upper worker count (-N) that effectiveBacklog
	// uses when VariableWorkers is set; 0 means 2*Workers, matching
	// kfcgi's "usemax" default.
	MaxWorkers int
	// ListenBacklog is the listen(2) backlog (-l); 0 means derive
	// it from the worker counts the way kfcgi does when -l is
	// absent (see effectiveBacklog). BindListener does not apply
	// it: the socket listens with the operating system's default
	// backlog.
	ListenBacklog int
	// ChrootPath is the directory the manager chroots into before
	// dropping privileges (-p), default "/var/www".
	ChrootPath string
	// SocketPath is the UNIX socket to bind for incoming FastCGI
	// connections (-s).
	SocketPath string
	// SocketUser, if set, chowns SocketPath to this user (-u).
	SocketUser string
	// ProcessUser, if set, is the user worker/control/responder
	// processes run as after privilege drop (-U).
	ProcessUser string
	// VariableWorkers (-r) makes effectiveBacklog derive from
	// MaxWorkers instead of Workers. The pool itself is not
	// resized: no code grows or shrinks the worker count under
	// load.
	VariableWorkers bool
	// RestartWait bounds how long Pool.Shutdown waits for killed
	// children to exit (-w), default 5m.
	RestartWait time.Duration
	// Debug selects kcgilog's debug configuration, human-readable
	// console output at debug level (-d). It does not disable
	// sandboxing: every role applies its policy regardless.
	Debug bool
	// Verbose records -v; nothing reads it, so it does not change
	// logging.
	Verbose bool
}

// DefaultConfig returns the same defaults kfcgi's main() applies
// before parsing argv.
func DefaultConfig() Config {
	return Config{
		Workers:     5,
		ChrootPath:  "/var/www",
		SocketPath:  "/var/www/run/httpd.sock",
		RestartWait: 5 * time.Minute,
	}
}

// effectiveMaxWorkers resolves -N's "0 means 2x -n" default.
func (c Config) effectiveMaxWorkers() int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}
	return c.Workers * 2
}

// effectiveBacklog resolves -l's "derive from worker count" default:
// kfcgi uses (variable ? maxwsz : wsz) * 2 when -l is absent.
func (c Config) effectiveBacklog() int {
	if c.ListenBacklog > 0 {
		return c.ListenBacklog
	}
	if c.VariableWorkers {
		return c.effectiveMaxWorkers() * 2
	}
	return c.Workers * 2
}
