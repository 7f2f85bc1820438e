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

// Package ipc implements the three framing primitives the worker,
// control, and manager processes use to talk to each other over
// anonymous sockets: fixed-size records, length-prefixed strings
// ("words"), and file-descriptor passing. It is the Go analogue of
// fullread/fullwrite/fullreadword/fullwritefd from the original
// child.c, reshaped around io.Reader/io.Writer and encoding/binary
// instead of raw read(2)/write(2) loops, since Go's standard library
// already retries short reads/writes for us.
package ipc

import (
	"encoding/binary"
	"io"
)

// WriteFixed writes v (a fixed-size value: an integer, a bool, or a
// struct of such) as big-endian bytes, matching fullwrite's use for
// anything of static size.
func WriteFixed(w io.Writer, v any) error {
	return binary.Write(w, binary.BigEndian, v)
}

// ReadFixed reads into v, the inverse of WriteFixed.
func ReadFixed(r io.Reader, v any) error {
	return binary.Read(r, binary.BigEndian, v)
}

// WriteBytes writes a length-prefixed byte slice: an 8-byte
// big-endian length followed by the bytes themselves, used for the
// kpair value payload (which is not NUL-terminated and may contain
// embedded NULs, unlike a Word).
func WriteBytes(w io.Writer, b []byte) error {
	if err := WriteFixed(w, uint64(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

// ReadBytes reads the inverse of WriteBytes.
func ReadBytes(r io.Reader) ([]byte, error) {
	var n uint64
	if err := ReadFixed(r, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
