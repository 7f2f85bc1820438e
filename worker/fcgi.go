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
	"bytes"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/kristapsdz/kcgi-go"
	"github.com/kristapsdz/kcgi-go/internal/fcgiwire"
	"github.com/kristapsdz/kcgi-go/internal/ipc"
	"github.com/kristapsdz/kcgi-go/internal/sandbox"
)

// RunFCGI is the FastCGI analogue of RunCGI: rwc is a connection
// already accepted (or fd-passed) by control and handed to this
// freshly self-reexec'd worker, carrying exactly one request's
// BeginRequest/PARAMS/STDIN record stream. conn is the separate
// inherited socketpair half back to the parent that carries the
// resulting Fields, the same wire format RunCGI uses, so control and
// the responder never need to know which transport produced them.
func RunFCGI(rwc io.ReadWriter, conn *os.File, mimeTable kcgi.MimeTable, log *zap.Logger) error {
	if err := sandbox.Apply(sandbox.WorkerPolicy()); err != nil {
		log.Warn("sandbox apply failed, continuing unsandboxed", zap.Error(err))
	}

	reqID, vars, body, err := readFCGIRequest(rwc)
	if err != nil {
		return fmt.Errorf("worker: fcgi read: %w", err)
	}

	e := CollectEnv(vars)
	auth := ParseAuth(e.RawAuthHeader, body)

	if err := ipc.WriteFixed(conn, reqID); err != nil {
		return err
	}
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

// readFCGIRequest consumes one FastCGI request off rwc: a
// BeginRequest record, a PARAMS stream terminated by a zero-length
// record, and a STDIN stream likewise terminated, matching how
// fcgi.c's worker side reads a single classic-mode connection.
func readFCGIRequest(rwc io.ReadWriter) (reqID uint16, vars map[string]string, body []byte, err error) {
	h, content, err := fcgiwire.ReadFullRecord(rwc)
	if err != nil {
		return 0, nil, nil, err
	}
	if h.Type != fcgiwire.TypeBeginRequest {
		return 0, nil, nil, fmt.Errorf("worker: expected BeginRequest, got type %d", h.Type)
	}
	begin, err := fcgiwire.ParseBeginRequestBody(content)
	if err != nil {
		return 0, nil, nil, err
	}
	reqID = h.RequestID

	if begin.Role != fcgiwire.RoleResponder || begin.Flags != 0 {
		_ = fcgiwire.WriteEndRequest(rwc, reqID, 0, fcgiwire.ProtocolStatusUnknownRole)
		return 0, nil, nil, fmt.Errorf("worker: unsupported BeginRequest role %d flags %d", begin.Role, begin.Flags)
	}

	var paramsBuf bytes.Buffer
	for {
		ph, pcontent, err := fcgiwire.ReadFullRecord(rwc)
		if err != nil {
			return 0, nil, nil, err
		}
		if ph.Type != fcgiwire.TypeParams {
			return 0, nil, nil, fmt.Errorf("worker: expected Params, got type %d", ph.Type)
		}
		if len(pcontent) == 0 {
			break
		}
		paramsBuf.Write(pcontent)
	}
	pairs, err := fcgiwire.DecodePairs(paramsBuf.Bytes())
	if err != nil {
		return 0, nil, nil, err
	}
	vars = make(map[string]string, len(pairs))
	for _, kv := range pairs {
		vars[kv[0]] = kv[1]
	}

	var stdinBuf bytes.Buffer
	for {
		sh, scontent, err := fcgiwire.ReadFullRecord(rwc)
		if err != nil {
			return 0, nil, nil, err
		}
		if sh.Type != fcgiwire.TypeStdin {
			return 0, nil, nil, fmt.Errorf("worker: expected Stdin, got type %d", sh.Type)
		}
		if len(scontent) == 0 {
			break
		}
		stdinBuf.Write(scontent)
	}

	return reqID, vars, stdinBuf.Bytes(), nil
}
