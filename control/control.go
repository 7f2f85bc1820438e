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

// Package control implements the FastCGI control process: it accepts
// (or receives, in extended mode) one network connection per request,
// hands the raw byte stream to a pool of sandboxed worker processes
// for parsing, and forwards completed requests on to the responder.
// It never parses untrusted bytes itself -- that's the whole point of
// keeping it a separate role from worker. Grounded on kfcgi_control in
// fcgi.c.
package control

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kristapsdz/kcgi-go/internal/metrics"
)

// Dispatcher hands one accepted connection to a free worker and
// returns once that worker has produced its Fields on conn, the Go
// analogue of fcgi.c's inner "keep pushing data into the worker"
// relay loop: here the OS does the byte relaying (the worker reads
// directly off the accepted net.Conn) so control's only job is
// admission control and lifecycle.
type Dispatcher func(ctx context.Context, rwc io.ReadWriteCloser) error

// Loop is the shared control-process body for both classic (accept)
// and extended (fd-passing) connection modes: bound concurrency to
// maxWorkers via a weighted semaphore so a burst of connections can
// never spawn more workers than the pool budget allows, update
// metrics around each request, and log+continue on a single
// connection's failure rather than tearing down the whole process.
// This mirrors kfcgi_control's per-connection for(;;) loop, with the
// semaphore standing in for the fixed worker array fcgi.c indexes by
// hand.
func Loop(ctx context.Context, accept func(context.Context) (io.ReadWriteCloser, error), dispatch Dispatcher, maxWorkers int64, reg *metrics.Registry, log *zap.Logger) error {
	sem := semaphore.NewWeighted(maxWorkers)

	for {
		rwc, err := accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("control: accept: %w", err)
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			rwc.Close()
			return ctx.Err()
		}

		if reg != nil {
			reg.WorkersActive.Inc()
		}

		// connID correlates this connection's dispatch-failure log
		// line (and whatever the worker/responder chain logs
		// downstream) across the several processes a single request
		// passes through, the same role caddyhttp/requestid's
		// generated ID plays across middleware.
		connID := uuid.New()

		go func(rwc io.ReadWriteCloser) {
			defer sem.Release(1)
			defer rwc.Close()
			if reg != nil {
				defer reg.WorkersActive.Dec()
			}

			if err := dispatch(ctx, rwc); err != nil {
				log.Warn("dispatch failed", zap.String("conn_id", connID.String()), zap.Error(err))
				if reg != nil {
					reg.ParseFailures.WithLabelValues("dispatch").Inc()
				}
			}
		}(rwc)
	}
}

// netAcceptor adapts a net.Listener to the accept signature Loop
// expects, matching classic mode's plain accept(2) call in
// kfcgi_control.
func netAcceptor(ln net.Listener) func(context.Context) (io.ReadWriteCloser, error) {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		conn, err := ln.Accept()
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
