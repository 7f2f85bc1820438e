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

// Package httpauth parses the raw value of an HTTP Authorization header
// into structured Basic or Digest credentials. It runs only inside the
// sandboxed worker process: the bytes it consumes are attacker-controlled.
package httpauth

import (
	"strconv"
	"strings"

	"github.com/kristapsdz/kcgi-go"
)

// Parse dissects the raw Authorization header value, selecting Basic or
// Digest by its first whitespace-delimited token (case-insensitively),
// and returns the resulting Auth record. A nil or empty header yields
// kcgi.AuthNone.
func Parse(header string) kcgi.Auth {
	header = strings.TrimSpace(header)
	if header == "" {
		return kcgi.Auth{Scheme: kcgi.AuthNone}
	}

	scheme, rest, _ := cutToken(header)
	switch {
	case strings.EqualFold(scheme, "digest"):
		return parseDigest(rest)
	case strings.EqualFold(scheme, "basic"):
		return parseBasic(rest)
	default:
		return kcgi.Auth{Scheme: kcgi.AuthUnknown}
	}
}

// cutToken splits off the first run of non-whitespace bytes, skipping
// leading whitespace first, mirroring kauth_nexttok with delim='\0'.
func cutToken(s string) (tok, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t")
	i := 0
	for i < len(s) && s[i] != ' ' && s[i] != '\t' {
		i++
	}
	if i == 0 {
		return "", s, false
	}
	return s[:i], strings.TrimLeft(s[i:], " \t"), true
}

func parseBasic(rest string) kcgi.Auth {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return kcgi.Auth{Scheme: kcgi.AuthBasic, Authorised: false}
	}
	return kcgi.Auth{Scheme: kcgi.AuthBasic, Authorised: true, Basic: kcgi.BasicAuth{Response: rest}}
}

// digestScanner walks a comma-separated key=value (or key="value") list,
// the RFC 2617 auth-param production, exactly as kauth_nexttok /
// kauth_nextvalue do over the C string.
type digestScanner struct {
	s string
}

func (d *digestScanner) key() (string, bool) {
	d.s = strings.TrimLeft(d.s, " \t")
	if d.s == "" {
		return "", false
	}
	i := strings.IndexByte(d.s, '=')
	if i < 0 {
		// No more pairs; consume the rest as an unparsable tail.
		d.s = ""
		return "", false
	}
	key := strings.TrimRight(d.s[:i], " \t")
	d.s = d.s[i+1:]
	return key, true
}

// value consumes a quoted-string or a bare token up to the next comma,
// leaving d.s positioned after an optional trailing comma and whitespace.
func (d *digestScanner) value() string {
	if d.s == "" {
		return ""
	}
	var val string
	if d.s[0] == '"' {
		rest := d.s[1:]
		end := 0
		for end < len(rest) {
			if rest[end] == '"' && (end == 0 || rest[end-1] != '\\') {
				break
			}
			end++
		}
		val = rest[:end]
		if end < len(rest) {
			end++ // consume closing quote
		}
		d.s = rest[end:]
	} else {
		i := strings.IndexByte(d.s, ',')
		if i < 0 {
			i = len(d.s)
		}
		val = strings.TrimRight(d.s[:i], " \t")
		d.s = d.s[i:]
	}
	d.consumeSeparator()
	return val
}

func (d *digestScanner) consumeSeparator() {
	d.s = strings.TrimLeft(d.s, " \t")
	if strings.HasPrefix(d.s, ",") {
		d.s = d.s[1:]
	}
	d.s = strings.TrimLeft(d.s, " \t")
}

func parseDigest(rest string) kcgi.Auth {
	auth := kcgi.Auth{Scheme: kcgi.AuthDigest}
	var d kcgi.DigestAuth

	sc := &digestScanner{s: rest}
	for {
		key, ok := sc.key()
		if !ok {
			break
		}
		switch strings.ToLower(key) {
		case "username":
			d.User = sc.value()
		case "realm":
			d.Realm = sc.value()
		case "nonce":
			d.Nonce = sc.value()
		case "cnonce":
			d.CNonce = sc.value()
		case "response":
			d.Response = sc.value()
		case "uri":
			d.URI = sc.value()
		case "algorithm":
			switch strings.ToLower(sc.value()) {
			case "md5-sess":
				d.Alg = kcgi.AlgMD5Sess
			default:
				d.Alg = kcgi.AlgMD5
			}
		case "qop":
			switch strings.ToLower(sc.value()) {
			case "auth":
				d.QoP = kcgi.QoPAuth
			case "auth-int":
				d.QoP = kcgi.QoPAuthInt
			default:
				d.QoP = kcgi.QoPNone
			}
		case "nc":
			v := sc.value()
			if len(v) == 8 {
				if n, err := strconv.ParseUint(v, 16, 32); err == nil {
					d.Count = uint32(n)
				}
			}
		case "opaque":
			d.Opaque = sc.value()
		default:
			sc.value()
		}
	}

	auth.Authorised = d.User != "" && d.Realm != "" && d.Nonce != "" &&
		d.Response != "" && d.URI != ""
	if auth.Authorised && d.Alg == kcgi.AlgMD5Sess {
		auth.Authorised = d.CNonce != ""
	}
	if auth.Authorised && (d.QoP == kcgi.QoPAuth || d.QoP == kcgi.QoPAuthInt) {
		auth.Authorised = d.Count != 0 && d.CNonce != ""
	}
	auth.Digest = d
	return auth
}

// NeedsBodyDigest reports whether a(n already-parsed) Digest
// Authorization requires the worker to MD5 the request body before
// shipping the record to the responder (auth-int QoP).
func NeedsBodyDigest(auth kcgi.Auth) bool {
	return auth.Scheme == kcgi.AuthDigest && auth.Authorised && auth.Digest.QoP == kcgi.QoPAuthInt
}
