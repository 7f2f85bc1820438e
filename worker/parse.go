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
	"crypto/md5"
	"strings"

	"github.com/kristapsdz/kcgi-go"
	"github.com/kristapsdz/kcgi-go/internal/httpauth"
	"github.com/kristapsdz/kcgi-go/internal/mimeheader"
	"github.com/kristapsdz/kcgi-go/internal/multipart"
	"github.com/kristapsdz/kcgi-go/internal/urlenc"
)

// Logf receives a log-and-continue diagnostic from any parsing stage.
type Logf func(format string, args ...any)

// FieldSink receives every parsed Field as it's produced, in arrival
// order, mirroring the child process's output() callback writing
// straight to its parent over the wire: kcgi-go never materialises
// the whole Request inside the worker, only inside the responder.
type FieldSink func(kcgi.Field)

// ParseRequest runs the full RFC 3875 §4.1.3/HTML5 §4.10 field
// collection pipeline: body (dispatched by Content-Type), query
// string, and cookies, in that order, matching kworker_child's call
// sequence in child.c. mimeTable resolves a Content-Type string to
// its MimeTable index for emitted Fields; pass nil to skip that
// lookup (it only affects Field.ContentTypeIndex).
func ParseRequest(e Env, body []byte, mimeTable kcgi.MimeTable, emit FieldSink, log Logf) {
	if e.ContentLength > 0 {
		parseBody(e, body, mimeTable, emit, log)
	}

	if e.QueryString != "" {
		urlenc.ParseURLEncoded(e.QueryString, func(k string, v []byte) {
			emit(kcgi.Field{Kind: kcgi.InputQuery, Key: k, Value: v})
		}, toURLEncLog(log))
	}

	if e.Cookie != "" {
		urlenc.ParseCookies(e.Cookie, func(k string, v []byte) {
			emit(kcgi.Field{Kind: kcgi.InputCookie, Key: k, Value: v})
		}, toURLEncLog(log))
	}
}

func toURLEncLog(log Logf) urlenc.Logf {
	if log == nil {
		return nil
	}
	return urlenc.Logf(log)
}

// parseBody implements the CONTENT_TYPE switch of khttp_input_child:
// exactly x-www-form-urlencoded, multipart/form-data, and (POST-only)
// text/plain get structured treatment; anything else, or no
// Content-Type at all, is handed to the application whole as a single
// unnamed Field carrying the raw body.
func parseBody(e Env, body []byte, mimeTable kcgi.MimeTable, emit FieldSink, log Logf) {
	ctype := e.ContentType
	switch {
	case ctype == "":
		emitRawBody(e, body, "application/octet-stream", mimeTable, emit)
	case strings.EqualFold(ctype, "application/x-www-form-urlencoded"):
		urlenc.ParseURLEncoded(string(body), func(k string, v []byte) {
			emit(kcgi.Field{Kind: kcgi.InputForm, Key: k, Value: v})
		}, toURLEncLog(log))
	case len(ctype) >= 19 && strings.EqualFold(ctype[:19], "multipart/form-data"):
		boundary := extractBoundary(ctype[19:])
		err := multipart.Parse(boundary, body, func(p multipart.Part) {
			emit(kcgi.Field{
				Kind:                    kcgi.InputForm,
				Key:                     p.Name,
				Value:                   p.Value,
				File:                    p.File,
				ContentType:             p.ContentType,
				ContentTransferEncoding: p.Encoding,
				ContentTypeIndex:        mimeTable.Lookup(p.ContentType),
			})
		}, toMultipartLog(log))
		if err != nil && log != nil {
			log("multiform: parse failed: %v", err)
		}
	case e.Method == kcgi.MethodPost && strings.EqualFold(ctype, "text/plain"):
		urlenc.ParsePlainText(string(body), func(k string, v []byte) {
			emit(kcgi.Field{Kind: kcgi.InputForm, Key: k, Value: v})
		}, toURLEncLog(log))
	default:
		emitRawBody(e, body, ctype, mimeTable, emit)
	}
}

func toMultipartLog(log Logf) multipart.Logf {
	if log == nil {
		return nil
	}
	return multipart.Logf(log)
}

// emitRawBody implements parse_body: an unrecognised (or absent)
// Content-Type is passed through whole, keyed by the empty string, so
// the application can still read it via FieldValue("").
func emitRawBody(e Env, body []byte, ctype string, mimeTable kcgi.MimeTable, emit FieldSink) {
	emit(kcgi.Field{
		Kind:             kcgi.InputForm,
		Key:              "",
		Value:            body,
		ContentType:      ctype,
		ContentTypeIndex: mimeTable.Lookup(ctype),
	})
}

// extractBoundary pulls the "boundary" parameter out of the remainder
// of a multipart/form-data Content-Type, e.g. "; boundary=abc123".
func extractBoundary(rest string) string {
	hdr, err := mimeheader.Parse([]byte("Content-Type:"+rest+"\r\n\r\n"), new(int))
	if err != nil {
		return ""
	}
	return hdr.Boundary
}

// ParseAuth turns the raw Authorization header and (if needed) the
// request body into a validated kcgi.Auth, implementing
// kworker_child_rawauth plus the body-MD5 step httpauth.c performs for
// "auth-int" digests.
func ParseAuth(rawHeader string, body []byte) kcgi.Auth {
	auth := httpauth.Parse(rawHeader)
	if httpauth.NeedsBodyDigest(auth) {
		sum := md5.Sum(body)
		auth.BodyMD5 = sum[:]
	}
	return auth
}
