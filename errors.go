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

// Result is the outcome of an operation that crosses a process boundary
// or touches untrusted input. It implements error so it composes with
// errors.Is/errors.As and fmt.Errorf("%w", ...) the normal way, but a nil
// Result is never returned as an error value -- callers check for a plain
// nil error, not kcgi.Ok.
type Result int

// Sentinel results, named after the outcomes in the privilege-separation
// protocol between worker, control and responder.
const (
	// Ok never travels as an error; it exists only to name the
	// zero-value outcome in logs and tests.
	Ok Result = iota
	ErrOutOfMemory
	ErrExit
	ErrHup
	ErrTooManyFiles
	ErrForkRetry
	ErrMalformed
	ErrSystem
	ErrWriterMisuse
)

var resultNames = [...]string{
	"ok",
	"out of memory",
	"exit requested",
	"peer hangup",
	"too many open files",
	"fork: resource temporarily unavailable",
	"malformed protocol data",
	"system error",
	"writer misuse",
}

func (r Result) Error() string {
	if r < 0 || int(r) >= len(resultNames) {
		return "unknown kcgi result"
	}
	return resultNames[r]
}

// IsFatal reports whether r must terminate the current request (a
// structural protocol violation) as opposed to a single malformed field,
// which parsers log and skip without signalling an error at all.
func (r Result) IsFatal() bool {
	switch r {
	case ErrMalformed, ErrSystem, ErrOutOfMemory, ErrTooManyFiles, ErrForkRetry:
		return true
	default:
		return false
	}
}
