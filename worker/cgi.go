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

package worker

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kristapsdz/kcgi-go"
	"github.com/kristapsdz/kcgi-go/internal/ipc"
	"github.com/kristapsdz/kcgi-go/internal/sandbox"
)

// osEnviron returns the process's environment as a map, the Go
// substitute for child.c's "extern char **environ" walk.
func osEnviron() map[string]string {
	vars := make(map[string]string, len(os.Environ()))
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			vars[kv[:i]] = kv[i+1:]
		}
	}
	return vars
}

// RunCGI is the entry point for a self-reexec'd "--role worker"
// process in CGI mode: it applies the worker sandbox policy, reads the
// request body from stdin per CONTENT_LENGTH, parses it, and streams
// the resulting Fields (plus the parsed method/scheme/auth) to conn,
// which is the inherited socketpair half connecting it to its parent.
// It implements kworker_child's top-level control flow.
func RunCGI(conn *os.File, mimeTable kcgi.MimeTable, log *zap.Logger) error {
	if err := sandbox.Apply(sandbox.WorkerPolicy()); err != nil {
		log.Warn("sandbox apply failed, continuing unsandboxed", zap.Error(err))
	}

	e := CollectEnv(osEnviron())

	var body []byte
	if e.ContentLength > 0 {
		buf := make([]byte, e.ContentLength)
		if _, err := io.ReadFull(os.Stdin, buf); err != nil && err != io.ErrUnexpectedEOF {
			return err
		}
		body = buf
	}

	auth := ParseAuth(e.RawAuthHeader, body)

	if err := ipc.WriteFixed(conn, int32(e.Method)); err != nil {
		return err
	}
	if err := ipc.WriteFixed(conn, int32(e.Scheme)); err != nil {
		return err
	}
	if err := writeAuth(conn, auth); err != nil {
		return err
	}
	if err := ipc.WriteWord(conn, e.Remote); err != nil {
		return err
	}
	if err := ipc.WriteFixed(conn, e.Port); err != nil {
		return err
	}
	if err := ipc.WriteWord(conn, e.Host); err != nil {
		return err
	}
	if err := ipc.WriteWord(conn, e.Path); err != nil {
		return err
	}
	if err := ipc.WriteWord(conn, e.Suffix); err != nil {
		return err
	}
	if err := ipc.WriteWord(conn, e.PageName); err != nil {
		return err
	}

	logf := func(format string, args ...any) {
		log.Warn("parse", zap.String("detail", fmt.Sprintf(format, args...)))
	}

	var werr error
	ParseRequest(e, body, mimeTable, func(f kcgi.Field) {
		if werr != nil {
			return
		}
		werr = WriteField(conn, f)
	}, logf)
	if werr != nil {
		return werr
	}
	return WriteFieldsEnd(conn)
}
