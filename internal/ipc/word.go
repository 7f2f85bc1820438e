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

package ipc

import "io"

// WriteWord writes a "word": the length of s (as a fixed uint64) then
// s's bytes, with no terminating NUL needed on the wire since the
// length already delimits it. Matches fullwriteword, which on the C
// side writes strlen(s) then s verbatim. An empty word is written as
// length 0 with no following bytes, which WriteWord's caller can use
// to signal "no string" (e.g. a NULL cp in child.c).
func WriteWord(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadWord reads the inverse of WriteWord.
func ReadWord(r io.Reader) (string, error) {
	b, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
