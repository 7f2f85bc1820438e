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

//go:build !linux

package sandbox

// Apply is a no-op outside Linux: kcgi-go has no seccomp-bpf
// equivalent wired up for other kernels yet (pledge(2) on OpenBSD and
// Capsicum on FreeBSD are the originals' answers here, mirrored by
// sandbox-systrace.c and sandbox-capsicum.c, but neither has a
// no-cgo Go binding in the example corpus). Process-level privilege
// separation -- the worker still runs as its own OS process with only
// the descriptors its parent handed it -- holds regardless.
func Apply(p Policy) error {
	return nil
}
