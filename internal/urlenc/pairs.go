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

package urlenc

import "strings"

// Logf receives a log-and-skip diagnostic for a single malformed pair;
// it never aborts the parse. Parsers accept nil, in which case
// diagnostics are simply dropped.
type Logf func(format string, args ...any)

func logf(fn Logf, format string, args ...any) {
	if fn != nil {
		fn(format, args...)
	}
}

// Emit receives one successfully decoded key/value pair.
type Emit func(key string, value []byte)

// ParseURLEncoded implements parse_pairs_urlenc: skip leading spaces,
// take the key up to the first "=", ";" or "&", the value up to the
// next ";" or "&", URL-decode both sides, and emit. A key with no "="
// or an empty key is logged and skipped; a pair whose key or value
// fails to decode is logged and skipped, and parsing continues with
// the next pair.
func ParseURLEncoded(body string, emit Emit, log Logf) {
	p := body
	for len(p) > 0 {
		for len(p) > 0 && p[0] == ' ' {
			p = p[1:]
		}
		if len(p) == 0 {
			return
		}

		eq := strings.IndexAny(p, "=;&")
		if eq < 0 || p[eq] != '=' {
			// No value: log and skip past the delimiter.
			logf(log, "url key: no value")
			if eq < 0 {
				return
			}
			p = p[eq+1:]
			continue
		}

		key := p[:eq]
		rest := p[eq+1:]
		end := strings.IndexAny(rest, ";&")
		var val string
		if end < 0 {
			val, p = rest, ""
		} else {
			val, p = rest[:end], rest[end+1:]
		}

		if key == "" {
			logf(log, "url key: zero length")
			continue
		}
		dkey, err := Decode(key)
		if err != nil {
			logf(log, "url key: key decode")
			continue
		}
		dval, err := Decode(val)
		if err != nil {
			logf(log, "url key: val decode")
			continue
		}
		emit(string(dkey), dval)
	}
}

// ParsePlainText implements parse_pairs_text for text/plain bodies
// (RFC 3875 deprecated form submission): key spans until "=", value
// spans until CRLF, neither side is URL-decoded.
func ParsePlainText(body string, emit Emit, log Logf) {
	p := body
	for len(p) > 0 {
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			return
		}
		key := p[:eq]
		rest := p[eq+1:]
		end := strings.Index(rest, "\r\n")
		var val string
		if end < 0 {
			val, p = rest, ""
		} else {
			val, p = rest[:end], rest[end+2:]
		}
		if key == "" {
			logf(log, "text key: zero length")
			continue
		}
		emit(key, []byte(val))
	}
}

// ParseCookies implements a practical RFC 6265 subset: pairs
// delimited only by ";", no URL decoding, no quoted-string handling. A
// bare key with no "=" is logged and rejected.
func ParseCookies(header string, emit Emit, log Logf) {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			logf(log, "cookie: no value for %q", part)
			continue
		}
		key := part[:eq]
		val := part[eq+1:]
		if key == "" {
			logf(log, "cookie: zero length key")
			continue
		}
		emit(key, []byte(val))
	}
}
