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

package fcgiwire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ErrTruncatedPairs is returned by DecodePairs when the PARAMS stream
// ends mid-pair.
var ErrTruncatedPairs = errors.New("fcgiwire: truncated name/value pairs")

// encodeLen appends a FastCGI name/value length: one byte if n < 128,
// else four bytes with the high bit of the first set, per the FCGI_NVPair
// length encoding.
func encodeLen(buf *bytes.Buffer, n int) {
	if n < 128 {
		buf.WriteByte(byte(n))
		return
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n)|(1<<31))
	buf.Write(b[:])
}

// EncodePairs serialises an ordered list of name/value pairs into the
// body of one or more PARAMS records (the caller still has to split
// across 64KB boundaries with WriteStream).
func EncodePairs(pairs [][2]string) []byte {
	var buf bytes.Buffer
	for _, kv := range pairs {
		encodeLen(&buf, len(kv[0]))
		encodeLen(&buf, len(kv[1]))
		buf.WriteString(kv[0])
		buf.WriteString(kv[1])
	}
	return buf.Bytes()
}

func decodeLen(b []byte) (n int, consumed int, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	if b[0]&0x80 == 0 {
		return int(b[0]), 1, true
	}
	if len(b) < 4 {
		return 0, 0, false
	}
	v := binary.BigEndian.Uint32(b[0:4]) &^ (1 << 31)
	return int(v), 4, true
}

// DecodePairs parses a concatenated PARAMS body (the caller assembles
// one or more records' contents first) into an ordered slice of
// name/value pairs, per the FCGI_NVPair production.
func DecodePairs(body []byte) ([][2]string, error) {
	var out [][2]string
	for len(body) > 0 {
		nameLen, n1, ok := decodeLen(body)
		if !ok {
			return nil, ErrTruncatedPairs
		}
		body = body[n1:]
		valLen, n2, ok := decodeLen(body)
		if !ok {
			return nil, ErrTruncatedPairs
		}
		body = body[n2:]
		if len(body) < nameLen+valLen {
			return nil, ErrTruncatedPairs
		}
		name := string(body[:nameLen])
		val := string(body[nameLen : nameLen+valLen])
		body = body[nameLen+valLen:]
		out = append(out, [2]string{name, val})
	}
	return out, nil
}
