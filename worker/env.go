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

// Package worker is the sandboxed process that turns a raw CGI or
// FastCGI request into structured, validated Fields and ships them to
// the responder over IPC. Nothing it imports ever touches the
// application's own handler code -- that boundary is what makes the
// privilege separation worth anything.
package worker

import (
	"strconv"
	"strings"

	"github.com/kristapsdz/kcgi-go"
)

// Env is the CGI-variable view of a request, shared by both the CGI
// worker (which reads it straight from os.Environ) and the FastCGI
// worker (which reads it from a decoded PARAMS record): the same
// RFC 3875 variable names carry the request regardless of transport.
type Env struct {
	Method        kcgi.Method
	Scheme        kcgi.Scheme
	Auth          kcgi.AuthScheme
	RawAuthHeader string
	Remote        string
	Port          uint16
	Host          string
	ScriptName    string
	PathInfo      string
	Path          string // top-level path element, PATH_INFO minus leading slash
	Suffix        string // file suffix, if any
	PageName      string // remainder of PATH_INFO after Path
	ContentType   string
	ContentLength int64
	QueryString   string
	Cookie        string
	AcceptEncode  string
	Vars          map[string]string // every CGI variable, for RecognisedHeader lookups
}

// authSchemeNames mirrors kauths[] in child.c: AUTH_TYPE values kcgi
// recognises by name, case-sensitively, per RFC 3875 §4.1.1.
var authSchemeNames = map[string]kcgi.AuthScheme{
	"Basic":  kcgi.AuthBasic,
	"Digest": kcgi.AuthDigest,
}

// CollectEnv builds an Env from a flat CGI variable map, implementing
// kworker_child_method/_auth/_scheme/_remote/_port/_httphost/
// _scriptname/_path as one shared pass so the CGI and FastCGI workers
// never duplicate this logic.
func CollectEnv(vars map[string]string) Env {
	e := Env{Vars: vars}

	e.Method = kcgi.MethodGet
	if v, ok := vars["REQUEST_METHOD"]; ok {
		e.Method = kcgi.ParseMethod(v)
	}

	e.Auth = kcgi.AuthNone
	if v, ok := vars["AUTH_TYPE"]; ok {
		if s, known := authSchemeNames[v]; known {
			e.Auth = s
		} else {
			e.Auth = kcgi.AuthUnknown
		}
	}

	e.RawAuthHeader = vars["HTTP_AUTHORIZATION"]

	https := vars["HTTPS"]
	if https == "" {
		https = "off"
	}
	e.Scheme = kcgi.ParseScheme(https)

	e.Remote = vars["REMOTE_ADDR"]
	if e.Remote == "" {
		e.Remote = "127.0.0.1"
	}

	e.Port = 80
	if v, ok := vars["SERVER_PORT"]; ok {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			e.Port = uint16(n)
		}
	}

	e.Host = vars["HTTP_HOST"]
	if e.Host == "" {
		e.Host = "localhost"
	}

	e.ScriptName = vars["SCRIPT_NAME"]
	e.ContentType = vars["CONTENT_TYPE"]
	e.QueryString = vars["QUERY_STRING"]
	e.Cookie = vars["HTTP_COOKIE"]
	e.AcceptEncode = vars["HTTP_ACCEPT_ENCODING"]
	if v, ok := vars["CONTENT_LENGTH"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			e.ContentLength = n
		}
	}

	e.PathInfo = vars["PATH_INFO"]
	parsePath(&e)

	return e
}

// parsePath implements kworker_child_path: split PATH_INFO into a top
// path element (the "page" component), its file suffix, and the
// remaining subpath.
func parsePath(e *Env) {
	cp := e.PathInfo
	if cp == "" {
		return
	}
	cp = strings.TrimPrefix(cp, "/")
	if cp == "" {
		return
	}

	sub := ""
	if i := strings.IndexByte(cp, '/'); i >= 0 {
		sub = cp[i+1:]
		cp = cp[:i]
	}

	suffix := ""
	if i := strings.LastIndexAny(cp, "/."); i >= 0 && cp[i] == '.' {
		suffix = cp[i+1:]
		cp = cp[:i]
	}

	e.Suffix = suffix
	e.Path = cp
	e.PageName = sub
}
