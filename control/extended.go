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

package control

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/kristapsdz/kcgi-go/internal/ipc"
	"github.com/kristapsdz/kcgi-go/internal/metrics"
)

// connFD adapts a received connection file descriptor to
// io.ReadWriteCloser by wrapping it in a *net.TCPConn-compatible
// *os.File, matching how fcgi.c's "fdfiled" branch treats the
// descriptor it received identically to one it accepted itself.
type connFD struct {
	f *os.File
}

func (c *connFD) Read(p []byte) (int, error)  { return c.f.Read(p) }
func (c *connFD) Write(p []byte) (int, error) { return c.f.Write(p) }
func (c *connFD) Close() error                { return c.f.Close() }

// RunExtended is the "fdfiled" mode of kfcgi_control: rather than
// owning a listening socket, control receives an already-accepted
// connection file descriptor over sock, sent via SCM_RIGHTS by
// whatever manager process owns the real listener (e.g. a supervisor
// that itself received the fd from systemd or an exec'd parent). This
// lets one manager fan connections out across several control/worker
// process groups without any of them needing to share a listening
// socket directly.
func RunExtended(ctx context.Context, sock *os.File, dispatch Dispatcher, maxWorkers int64, reg *metrics.Registry, log *zap.Logger) error {
	accept := func(ctx context.Context) (io.ReadWriteCloser, error) {
		fd, _, err := ipc.RecvFD(sock, 0)
		if err != nil {
			return nil, fmt.Errorf("control: recv fd: %w", err)
		}
		return &connFD{f: fd}, nil
	}
	return Loop(ctx, accept, dispatch, maxWorkers, reg, log)
}

// SendConn hands off an already-accepted connection to an extended-
// mode control process, the manager side of the handshake RunExtended
// consumes. conn must be backed by a file descriptor (a *net.TCPConn
// or *net.UnixConn), matching fullwritefd's requirement in the
// original.
func SendConn(sock *os.File, conn net.Conn) error {
	type fileConn interface {
		File() (*os.File, error)
	}
	fc, ok := conn.(fileConn)
	if !ok {
		return fmt.Errorf("control: connection type %T has no usable descriptor", conn)
	}
	f, err := fc.File()
	if err != nil {
		return fmt.Errorf("control: dup connection fd: %w", err)
	}
	defer f.Close()
	return ipc.SendFD(sock, int(f.Fd()), nil)
}
