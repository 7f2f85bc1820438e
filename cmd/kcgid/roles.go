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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kristapsdz/kcgi-go"
	"github.com/kristapsdz/kcgi-go/internal/metrics"
	"github.com/kristapsdz/kcgi-go/internal/sandbox"
	"github.com/kristapsdz/kcgi-go/log"
	"github.com/kristapsdz/kcgi-go/manager"
	"github.com/kristapsdz/kcgi-go/worker"
)

var managerCfg = manager.DefaultConfig()

// bindManagerFlags wires manager.Config's fields to the same -n/-N/-l/
// -p/-s/-u/-U/-r/-w/-d/-v flags kfcgi's main() parses with getopt,
// translated to spf13/pflag long/short forms.
func bindManagerFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&managerCfg.Workers, "workers", "n", managerCfg.Workers, "steady-state worker pool size")
	fs.IntVarP(&managerCfg.MaxWorkers, "max-workers", "N", 0, "upper worker count for the derived backlog with -r (0: 2x -n)")
	fs.IntVarP(&managerCfg.ListenBacklog, "backlog", "l", 0, "listen backlog, not applied to the socket (0: derived from worker counts)")
	fs.StringVarP(&managerCfg.ChrootPath, "chroot", "p", managerCfg.ChrootPath, "directory to chroot into")
	fs.StringVarP(&managerCfg.SocketPath, "socket", "s", managerCfg.SocketPath, "FastCGI UNIX socket path")
	fs.StringVarP(&managerCfg.SocketUser, "socket-user", "u", "", "chown the socket to this user")
	fs.StringVarP(&managerCfg.ProcessUser, "process-user", "U", "", "run child processes as this user")
	fs.BoolVarP(&managerCfg.VariableWorkers, "variable-workers", "r", false, "derive the backlog from -N instead of -n; the pool size stays fixed")
	fs.DurationVarP(&managerCfg.RestartWait, "restart-wait", "w", managerCfg.RestartWait, "max time to wait for children to exit on shutdown")
	fs.BoolVarP(&managerCfg.Debug, "debug", "d", false, "debug-level console logging (sandboxing stays on)")
	fs.BoolVarP(&managerCfg.Verbose, "verbose", "v", false, "accepted for kfcgi compatibility; has no effect")
}

// dispatch runs the process body for role, or the manager's if role
// is empty, the single fork point every self-reexec'd child and the
// original supervisor invocation both pass through.
func dispatch(role string) error {
	logger, err := log.New(log.Config{Debug: managerCfg.Debug, Role: roleName(role)})
	if err != nil {
		logger = log.Fallback()
	}
	defer logger.Sync()

	switch role {
	case string(manager.RoleWorker):
		return runWorkerRole(logger)
	case string(manager.RoleControl):
		return runControlRole(logger)
	case string(manager.RoleResponder):
		return runResponderRole(logger)
	case "":
		return runManager(logger)
	default:
		return fmt.Errorf("unknown role %q", role)
	}
}

func roleName(role string) string {
	if role == "" {
		return "manager"
	}
	return role
}

// runWorkerRole is invoked as "kcgid --role worker": fd 3, inherited
// via ExtraFiles from manager.Pool.Spawn, is this worker's socketpair
// half back to its control/responder pair. Whether it speaks CGI or
// FastCGI on stdin is decided by KCGI_FASTCGI in the environment it
// inherits ("1" selects FastCGI; Pool.Spawn does not set it) -- the
// same branch kworker_child takes in child.c based on how it itself
// was invoked.
func runWorkerRole(logger *zap.Logger) error {
	conn := os.NewFile(3, "worker-sock")
	if conn == nil {
		return fmt.Errorf("worker: missing inherited socket on fd 3")
	}
	defer conn.Close()

	var mimeTable kcgi.MimeTable // application-specific, wired in by the embedding program

	if os.Getenv("KCGI_FASTCGI") == "1" {
		return worker.RunFCGI(os.Stdin, conn, mimeTable, logger)
	}
	return worker.RunCGI(conn, mimeTable, logger)
}

// runControlRole is invoked as "kcgid --role control".
func runControlRole(logger *zap.Logger) error {
	if err := sandbox.Apply(sandbox.ControlPolicy()); err != nil {
		logger.Warn("sandbox apply failed, continuing unsandboxed", zap.Error(err))
	}
	// The concrete listener/dispatch wiring is application-specific
	// (it needs the embedding program's handler), so the daemon
	// shell here only demonstrates the role boundary; a real
	// deployment links control.RunClassic/RunExtended from its own
	// main package the way it links worker.RunCGI above.
	<-context.Background().Done()
	return nil
}

// runResponderRole is invoked as "kcgid --role responder".
func runResponderRole(logger *zap.Logger) error {
	if err := sandbox.Apply(sandbox.ResponderPolicy()); err != nil {
		logger.Warn("sandbox apply failed, continuing unsandboxed", zap.Error(err))
	}
	<-context.Background().Done()
	return nil
}

// runManager is the unadorned supervisor invocation: bind the socket,
// jail and drop privileges, then keep a worker pool warm until
// signaled to stop.
func runManager(logger *zap.Logger) error {
	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	ln, err := managerCfg.BindListener()
	if err != nil {
		return err
	}

	if err := managerCfg.Jail(); err != nil {
		ln.Close()
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("manager: resolve executable: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := manager.NewPool(managerCfg, exe, logger, reg)
	for i := 0; i < managerCfg.Workers; i++ {
		if _, err := pool.Spawn(ctx, manager.RoleWorker); err != nil {
			return err
		}
	}
	if _, err := pool.Spawn(ctx, manager.RoleControl); err != nil {
		return err
	}
	if _, err := pool.Spawn(ctx, manager.RoleResponder); err != nil {
		return err
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info("shutting down")
	case <-ctx.Done():
	}

	cancel()
	ln.Close()
	pool.Shutdown()
	return nil
}

