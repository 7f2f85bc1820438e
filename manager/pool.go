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

package manager

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kristapsdz/kcgi-go/internal/ipc"
	"github.com/kristapsdz/kcgi-go/internal/metrics"
)

// restartRateLimit and restartBurst bound how fast a single role can
// be respawned: a child that crashes in a tight loop (bad config,
// missing file, whatever keeps killing it) must not be allowed to
// pin the manager in a fork storm. One respawn per second per role,
// with a small burst for the ordinary case of several children of
// the same role dying close together.
const (
	restartRateLimit = rate.Limit(1)
	restartBurst     = 3
)

// Role identifies which self-reexec'd child a Pool entry runs,
// passed to the rebuilt binary as "--role <name>" the way
// cmd/kcgid/roles.go expects. Splitting worker/control/responder
// into distinct reexec roles (rather than one "child" role that
// branches internally) keeps each process's seccomp policy tight:
// the kernel filter a process installs on startup only needs to
// cover what that one role actually calls.
type Role string

const (
	RoleWorker    Role = "worker"
	RoleControl   Role = "control"
	RoleResponder Role = "responder"
)

// child tracks one supervised process and its IPC socketpair half.
type child struct {
	role Role
	cmd  *exec.Cmd
	sock *os.File // parent's half of the socketpair handed to the child
}

// Pool supervises the self-reexec'd children it is asked to Spawn (it
// never adds or removes children on its own), restarting any that
// exits, cleanly or not, within the restart rate limit. Grounded on kfcgi.c main()'s
// fork loop (it forks wsz worker processes up front, each sharing a
// socketpair with the parent) generalised to Go's exec.Command +
// ExtraFiles self-reexec idiom, the same shape as Caddy's own
// zero-downtime restart in caddy/restart.go.
type Pool struct {
	cfg      Config
	exe      string // path to this same binary, os.Args[0]
	log      *zap.Logger
	reg      *metrics.Registry
	mu       sync.Mutex
	active   map[Role][]*child
	limiters map[Role]*rate.Limiter
}

// NewPool constructs a Pool that will reexec exe (typically
// os.Args[0]) for each child process.
func NewPool(cfg Config, exe string, log *zap.Logger, reg *metrics.Registry) *Pool {
	return &Pool{
		cfg:      cfg,
		exe:      exe,
		log:      log,
		reg:      reg,
		active:   make(map[Role][]*child),
		limiters: make(map[Role]*rate.Limiter),
	}
}

// restartLimiter returns the shared rate.Limiter bounding how often
// role may be respawned, creating it on first use.
func (p *Pool) restartLimiter(role Role) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[role]
	if !ok {
		l = rate.NewLimiter(restartRateLimit, restartBurst)
		p.limiters[role] = l
	}
	return l
}

// Spawn self-reexecs one child of the given role. The child's half of
// a freshly created socketpair is passed as its first ExtraFiles
// entry (so it lands on fd 3 in the child, the same convention
// Caddy's restart.go relies on for predictable fd numbering), and the
// parent's half is returned for the caller to drive the worker/
// control/responder wire protocol over.
func (p *Pool) Spawn(ctx context.Context, role Role) (*os.File, error) {
	parentSock, childSock, err := ipc.NewSocketpair()
	if err != nil {
		return nil, fmt.Errorf("manager: socketpair: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.exe, "--role", string(role))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{childSock}

	if err := cmd.Start(); err != nil {
		childSock.Close()
		parentSock.Close()
		return nil, fmt.Errorf("manager: spawn %s: %w", role, err)
	}
	childSock.Close()

	c := &child{role: role, cmd: cmd, sock: parentSock}
	p.mu.Lock()
	p.active[role] = append(p.active[role], c)
	p.mu.Unlock()

	if p.reg != nil {
		p.reg.WorkersActive.Inc()
	}

	go p.supervise(ctx, c)

	return parentSock, nil
}

// supervise waits for a child to exit, reaps it, and -- unless the
// Pool itself is shutting down -- respawns a replacement of the same
// role, matching kfcgi.c's "the supervisor restarts it" handling of a
// crashed worker/control/responder. restartLimiter bounds how often a
// single role may be respawned so a child stuck in a crash loop
// cannot fork-storm the manager.
func (p *Pool) supervise(ctx context.Context, c *child) {
	err := c.cmd.Wait()
	p.mu.Lock()
	list := p.active[c.role]
	for i, e := range list {
		if e == c {
			p.active[c.role] = append(list[:i], list[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	if p.reg != nil {
		p.reg.WorkersActive.Dec()
		if err != nil {
			p.reg.RestartsTotal.Inc()
		}
	}

	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.log.Warn("child exited", zap.String("role", string(c.role)), zap.Error(err))
	}

	if !p.restartLimiter(c.role).Allow() {
		p.log.Warn("restart rate exceeded, not respawning",
			zap.String("role", string(c.role)))
		return
	}
	if _, err := p.Spawn(ctx, c.role); err != nil {
		p.log.Warn("respawn failed", zap.String("role", string(c.role)), zap.Error(err))
	}
}

// Shutdown signals every supervised child to terminate and waits up
// to cfg.RestartWait for them to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	var all []*child
	for _, list := range p.active {
		all = append(all, list...)
	}
	p.mu.Unlock()

	for _, c := range all {
		c.sock.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	}

	done := make(chan struct{})
	go func() {
		for _, c := range all {
			c.cmd.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.cfg.RestartWait):
		p.log.Warn("timed out waiting for children to exit")
	}
}
