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

// Package fcgiwire implements the FastCGI version 1.0 wire protocol --
// record framing and the name/value pair encoding used by the PARAMS
// record type -- on the responder side of the connection. It is the Go
// analogue of the client-side codec in Caddy's fastcgi module, read
// backwards: kcgi-go is the application a web server dials into, not
// the thing dialing out.
package fcgiwire

import (
	"encoding/binary"
	"errors"
	"io"
)

// Version is the only FastCGI protocol version kcgi-go speaks.
const Version uint8 = 1

// Record types, FCGI_* in the FastCGI protocol.
const (
	TypeBeginRequest uint8 = iota + 1
	TypeAbortRequest
	TypeEndRequest
	TypeParams
	TypeStdin
	TypeStdout
	TypeStderr
	TypeData
	TypeGetValues
	TypeGetValuesResult
	TypeUnknownType
)

// Roles, FCGI_RESPONDER et al.
const (
	RoleResponder uint16 = iota + 1
	RoleAuthorizer
	RoleFilter
)

// Protocol status codes carried in an EndRequest body.
const (
	ProtocolStatusRequestComplete uint8 = iota
	ProtocolStatusCantMultiplexConns
	ProtocolStatusOverloaded
	ProtocolStatusUnknownRole
)

// Flags understood in a BeginRequest body.
const FlagKeepConn uint8 = 1

const maxContentLength = 65535

// ErrBadVersion is returned by ReadHeader when the record claims a
// FastCGI version other than 1.
var ErrBadVersion = errors.New("fcgiwire: unsupported protocol version")

// Header is the eight-byte FCGI_Header struct preceding every record.
type Header struct {
	Version       uint8
	Type          uint8
	RequestID     uint16
	ContentLength uint16
	PaddingLength uint8
	Reserved      uint8
}

// ReadHeader reads and validates one record header.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return Header{}, err
	}
	if h.Version != Version {
		return Header{}, ErrBadVersion
	}
	return h, nil
}

// WriteHeader writes one record header.
func WriteHeader(w io.Writer, h Header) error {
	return binary.Write(w, binary.BigEndian, h)
}

// padding computes the 0-7 zero bytes needed to round contentLength up
// to a multiple of 8, matching FCGIClient.header.init's "-n & 7".
func padding(contentLength int) uint8 {
	return uint8(-contentLength & 7)
}

var zeroPad [8]byte

// WriteRecord frames content as a single record of the given type for
// reqID and writes it, including its padding. Content longer than
// 65535 bytes is the caller's responsibility to split across multiple
// records (WriteStream does this for PARAMS/STDIN/STDOUT).
func WriteRecord(w io.Writer, recType uint8, reqID uint16, content []byte) error {
	if len(content) > maxContentLength {
		panic("fcgiwire: record content too large")
	}
	h := Header{
		Version:       Version,
		Type:          recType,
		RequestID:     reqID,
		ContentLength: uint16(len(content)),
		PaddingLength: padding(len(content)),
	}
	if err := WriteHeader(w, h); err != nil {
		return err
	}
	if _, err := w.Write(content); err != nil {
		return err
	}
	if h.PaddingLength > 0 {
		if _, err := w.Write(zeroPad[:h.PaddingLength]); err != nil {
			return err
		}
	}
	return nil
}

// WriteStream splits content across as many same-typed records as
// needed to respect the 16-bit content length, terminating with a
// zero-length record as FastCGI streams require (PARAMS, STDIN,
// STDOUT, STDERR, DATA).
func WriteStream(w io.Writer, recType uint8, reqID uint16, content []byte) error {
	for len(content) > 0 {
		n := len(content)
		if n > maxContentLength {
			n = maxContentLength
		}
		if err := WriteRecord(w, recType, reqID, content[:n]); err != nil {
			return err
		}
		content = content[n:]
	}
	return WriteRecord(w, recType, reqID, nil)
}

// BeginRequestBody is the eight-byte body of a BeginRequest record.
type BeginRequestBody struct {
	Role  uint16
	Flags uint8
}

// ParseBeginRequestBody decodes a BeginRequest record's content.
func ParseBeginRequestBody(content []byte) (BeginRequestBody, error) {
	if len(content) < 8 {
		return BeginRequestBody{}, errors.New("fcgiwire: short BeginRequest body")
	}
	return BeginRequestBody{
		Role:  binary.BigEndian.Uint16(content[0:2]),
		Flags: content[2],
	}, nil
}

// WriteEndRequest writes an EndRequest record reporting appStatus (the
// application's exit code) and a FastCGI protocol status.
func WriteEndRequest(w io.Writer, reqID uint16, appStatus int32, protocolStatus uint8) error {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], uint32(appStatus))
	body[4] = protocolStatus
	return WriteRecord(w, TypeEndRequest, reqID, body)
}

// ReadFullRecord reads one header plus its content and padding,
// returning the content with padding stripped.
func ReadFullRecord(r io.Reader) (Header, []byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	n := int(h.ContentLength) + int(h.PaddingLength)
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return Header{}, nil, err
		}
	}
	return h, buf[:h.ContentLength], nil
}
