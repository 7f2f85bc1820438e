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

// Package responder runs the application's own handler code: it
// reads the structured Fields, auth result, and request metadata a
// worker process produced over IPC, assembles a *kcgi.Request from
// them, and gives the caller a Writer to answer with. It never parses
// untrusted bytes itself, only the worker's already-validated wire
// records -- by the time anything reaches this package the sandboxed
// parsing step is done. Grounded on parent.c's input_fields/
// kworker_parent_rawauth reader side.
package responder

import (
	"fmt"
	"io"

	"github.com/kristapsdz/kcgi-go"
	"github.com/kristapsdz/kcgi-go/internal/ipc"
	"github.com/kristapsdz/kcgi-go/worker"
)

// readAuthFrom mirrors worker.writeAuth's wire shape; duplicated here
// (rather than exported from worker) because worker is the untrusted-
// input boundary and must not import the package that runs
// application code, nor vice versa -- the two are grounded on the
// same struct but kept as separate codecs deliberately, the same way
// parent.c and child.c each hand-roll their own read/write of the
// auth union instead of sharing a function across the privilege
// boundary.
func readAuthFrom(r io.Reader) (kcgi.Auth, error) {
	var a kcgi.Auth
	var scheme int32
	if err := ipc.ReadFixed(r, &scheme); err != nil {
		return kcgi.Auth{}, err
	}
	a.Scheme = kcgi.AuthScheme(scheme)
	if err := ipc.ReadFixed(r, &a.Authorised); err != nil {
		return kcgi.Auth{}, err
	}
	switch a.Scheme {
	case kcgi.AuthBasic:
		s, err := ipc.ReadWord(r)
		if err != nil {
			return kcgi.Auth{}, err
		}
		a.Basic.Response = s
	case kcgi.AuthDigest:
		var alg, qop int32
		if err := ipc.ReadFixed(r, &alg); err != nil {
			return kcgi.Auth{}, err
		}
		if err := ipc.ReadFixed(r, &qop); err != nil {
			return kcgi.Auth{}, err
		}
		a.Digest.Alg = kcgi.DigestAlg(alg)
		a.Digest.QoP = kcgi.DigestQoP(qop)
		fields := []*string{
			&a.Digest.User, &a.Digest.Realm, &a.Digest.URI,
			&a.Digest.Nonce, &a.Digest.CNonce, &a.Digest.Response, &a.Digest.Opaque,
		}
		for _, f := range fields {
			s, err := ipc.ReadWord(r)
			if err != nil {
				return kcgi.Auth{}, err
			}
			*f = s
		}
		if err := ipc.ReadFixed(r, &a.Digest.Count); err != nil {
			return kcgi.Auth{}, err
		}
	}
	md5sum, err := ipc.ReadBytes(r)
	if err != nil {
		return kcgi.Auth{}, err
	}
	a.BodyMD5 = md5sum
	return a, nil
}

// ReadFCGIRequest is ReadRequest's FastCGI-mode counterpart: a
// FastCGI worker (worker.RunFCGI) prefixes its output with the
// request ID so a control process juggling several concurrent
// connections on one wire can demultiplex replies; classic CGI has
// no such concept; since exactly one request exists per process, so
// RunCGI omits it.
func ReadFCGIRequest(r io.Reader, keys []kcgi.KeyValidator) (reqID uint16, req *kcgi.Request, err error) {
	if err := ipc.ReadFixed(r, &reqID); err != nil {
		return 0, nil, fmt.Errorf("responder: read request id: %w", err)
	}
	req, err = ReadRequest(r, keys)
	return reqID, req, err
}

// ReadRequest consumes one worker's output off r -- method, scheme,
// auth, remote/port/host, path components, then the Field stream --
// and assembles it into a *kcgi.Request ready for the application
// handler. keys is the validator table the original Request was
// constructed with, the same one the worker used to classify Fields
// by validator index.
func ReadRequest(r io.Reader, keys []kcgi.KeyValidator) (*kcgi.Request, error) {
	req := kcgi.NewRequest(keys)

	var method, scheme int32
	if err := ipc.ReadFixed(r, &method); err != nil {
		return nil, fmt.Errorf("responder: read method: %w", err)
	}
	req.Method = kcgi.Method(method)

	if err := ipc.ReadFixed(r, &scheme); err != nil {
		return nil, fmt.Errorf("responder: read scheme: %w", err)
	}
	req.Scheme = kcgi.Scheme(scheme)

	auth, err := readAuthFrom(r)
	if err != nil {
		return nil, fmt.Errorf("responder: read auth: %w", err)
	}
	req.Auth = auth

	for _, dst := range []*string{&req.Remote} {
		s, err := ipc.ReadWord(r)
		if err != nil {
			return nil, fmt.Errorf("responder: read word: %w", err)
		}
		*dst = s
	}

	var port uint16
	if err := ipc.ReadFixed(r, &port); err != nil {
		return nil, fmt.Errorf("responder: read port: %w", err)
	}
	req.Port = port

	for _, dst := range []*string{&req.Host, &req.Path, &req.Suffix, &req.PageName} {
		s, err := ipc.ReadWord(r)
		if err != nil {
			return nil, fmt.Errorf("responder: read word: %w", err)
		}
		*dst = s
	}

	for {
		f, ok, err := worker.ReadField(r)
		if err != nil {
			return nil, fmt.Errorf("responder: read field: %w", err)
		}
		if !ok {
			break
		}
		switch f.Kind {
		case kcgi.InputCookie:
			req.AddCookie(f)
		default:
			req.AddField(f)
		}
	}

	return req, nil
}
