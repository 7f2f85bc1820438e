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

// Package multipart parses multipart/form-data bodies per RFC 2046
// §5.1.1, including the nested multipart/mixed case of RFC 2046
// §5.1.7 and the part-naming rules of RFC 2388. It runs only inside
// the sandboxed worker process.
package multipart

import (
	"bytes"
	"errors"
	"strings"

	"github.com/kristapsdz/kcgi-go/internal/mimeheader"
)

// ErrMalformed is returned when the body cannot be parsed as valid
// multipart framing (unexpected EOF, a boundary with no trailing CRLF,
// bad nested MIME headers, or a multipart/mixed part with no boundary
// parameter of its own).
var ErrMalformed = errors.New("multipart: malformed body")

// Part is one emitted leaf of the multipart tree: a named field or
// file upload, after multipart/mixed name inheritance has been
// resolved.
type Part struct {
	Name        string
	Value       []byte
	File        string
	ContentType string
	Encoding    string
}

// Emit receives one fully resolved leaf Part.
type Emit func(Part)

// Logf receives a log-and-continue diagnostic.
type Logf func(format string, args ...any)

func logf(fn Logf, format string, args ...any) {
	if fn != nil {
		fn(format, args...)
	}
}

// Parse parses the whole body against boundary, which the caller has
// already taken from the request's Content-Type, emitting one Part per
// non-multipart/mixed leaf; an empty boundary is ErrMalformed. It
// implements parse_multi + parse_multiform.
func Parse(boundary string, body []byte, emit Emit, log Logf) error {
	if boundary == "" {
		return ErrMalformed
	}
	pos := 0
	return parseForm(nil, boundary, body, &pos, emit, log)
}

// parseForm implements parse_multiform. name, when non-empty, is the
// field name inherited from an enclosing multipart/mixed part; a leaf
// part's own MIME name is used only when no such inheritance applies.
func parseForm(name *string, boundary string, buf []byte, pos *int, emit Emit, log Logf) error {
	bb := []byte("\r\n--" + boundary)

	for first := true; *pos < len(buf); first = false {
		marker := bb
		if first {
			marker = bb[2:]
		}
		rel := bytes.Index(buf[*pos:], marker)
		if rel < 0 {
			logf(log, "multiform: unexpected eof")
			return ErrMalformed
		}
		lineStart := *pos + rel
		endpos := lineStart + len(marker)
		if endpos > len(buf)-2 {
			logf(log, "multiform: end position out of bounds")
			return ErrMalformed
		}

		var terminal bool
		if !bytes.Equal(buf[endpos:endpos+2], []byte("--")) {
			for endpos < len(buf) && buf[endpos] == ' ' {
				endpos++
			}
			if endpos+2 > len(buf) || !bytes.Equal(buf[endpos:endpos+2], []byte("\r\n")) {
				logf(log, "multiform: missing crlf")
				return ErrMalformed
			}
			endpos += 2
		} else {
			terminal = true
			endpos = len(buf)
		}

		partsz := lineStart - *pos
		start := *pos
		*pos = endpos
		if first || partsz == 0 {
			if terminal {
				return nil
			}
			continue
		}

		hpos := start
		hdr, err := mimeheader.Parse(buf[:start+partsz], &hpos)
		if err != nil {
			logf(log, "multiform: bad MIME headers")
			return ErrMalformed
		}

		if hdr.Name == "" && name == nil {
			logf(log, "multiform: no MIME name")
			if terminal {
				return nil
			}
			continue
		}
		if hdr.Disposition == "" {
			logf(log, "multiform: no MIME disposition")
			if terminal {
				return nil
			}
			continue
		}
		ctype := hdr.ContentType
		if ctype == "" {
			ctype = "text/plain"
		}

		partEnd := start + partsz

		if strings.EqualFold(ctype, "multipart/mixed") {
			if hdr.Boundary == "" {
				logf(log, "multiform: missing boundary")
				return ErrMalformed
			}
			effective := name
			if effective == nil {
				n := hdr.Name
				effective = &n
			}
			sub := hpos
			if err := parseForm(effective, hdr.Boundary, buf[:partEnd], &sub, emit, log); err != nil {
				logf(log, "multiform: mixed part error")
				return err
			}
			if terminal {
				return nil
			}
			continue
		}

		value := buf[hpos:partEnd]
		fieldName := hdr.Name
		if name != nil {
			fieldName = *name
		}
		emit(Part{
			Name:        fieldName,
			Value:       append([]byte(nil), value...),
			File:        hdr.File,
			ContentType: ctype,
			Encoding:    hdr.Encoding,
		})

		if terminal {
			return nil
		}
	}
	return nil
}
