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

package kcgi

// InputKind says which of the three independently-populated collections
// a Field came from.
type InputKind int

const (
	InputCookie InputKind = iota
	InputQuery
	InputForm
	// InputMax is the sentinel terminating the field stream on the
	// wire.
	InputMax
)

// ParseState is the tri-state result of running a Field through its
// registered Validator.
type ParseState int

const (
	StateUnchecked ParseState = iota
	StateValid
	StateInvalid
)

// ParsedKind says which union member of Field.Parsed is populated when
// State is StateValid.
type ParsedKind int

const (
	ParsedNone ParsedKind = iota
	ParsedInt64
	ParsedDouble
	ParsedString
)

// Parsed is the validated, typed form of a Field's raw value. Only one
// member is meaningful, selected by Kind. Str, when present, is always a
// substring view into the owning Field's Value -- it never allocates, to
// preserve the invariant that a parsed string always aliases its
// owning Field's byte range.
type Parsed struct {
	Kind   ParsedKind
	Int64  int64
	Double float64
	Str    string
}

// Field is one parsed key/value occurrence.
// Binary-safe: Value may contain embedded NULs picked up from a
// multipart upload, so callers relying on a string value should use
// Value directly rather than assume a terminator boundary.
type Field struct {
	Kind InputKind

	Key   string
	Value []byte

	// Multipart metadata; empty unless Kind == InputForm and the
	// field came from a multipart/form-data part.
	File                    string
	ContentType             string
	ContentTransferEncoding string
	// ContentTypeIndex is the index of ContentType into the caller's
	// MimeTable, or the table's Unmatched() sentinel.
	ContentTypeIndex int

	State  ParseState
	Parsed Parsed

	// KeyIndex is the index of Key into the caller's validator table,
	// or that table's length if Key matched nothing.
	KeyIndex int
}

// String is a convenience accessor returning a copy of Value as a
// string.
func (f *Field) String() string { return string(f.Value) }
