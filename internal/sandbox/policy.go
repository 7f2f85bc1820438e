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

// Package sandbox applies a least-privilege system call policy to the
// current process before it touches a single byte of untrusted input.
// On Linux this installs a seccomp-bpf filter built by hand with
// golang.org/x/sys/unix, mirroring sandbox-seccomp-filter.c's
// allow-list approach but without a cgo dependency on libseccomp. On
// platforms kcgi-go has no filter for, Apply returns nil and logs nothing --
// the worker's privilege separation (a distinct OS process with a
// trimmed-down, chrooted or pledge-able environment) still holds even
// without a syscall filter on top.
package sandbox

// Capability names one class of system call the worker process needs
// to keep working. A Policy grants exactly the capabilities its role
// requires; everything else traps.
type Capability int

const (
	// CapRead permits read/recvmsg/recvfrom on already-open
	// descriptors -- every role needs this to receive work.
	CapRead Capability = iota
	// CapWrite permits write/sendmsg/sendto on already-open
	// descriptors -- every role needs this to report results.
	CapWrite
	// CapMemory permits the allocator's mmap/munmap/brk/mremap
	// calls -- needed by any role that parses into Go-heap memory.
	CapMemory
	// CapClock permits clock_gettime and friends, needed by the
	// poll/epoll-driven event loops in control and manager.
	CapClock
	// CapPoll permits poll/ppoll/epoll_wait, needed by any role
	// that multiplexes several descriptors.
	CapPoll
	// CapExit permits exit/exit_group -- every role needs to be
	// able to terminate itself cleanly.
	CapExit
	// CapSignal permits rt_sigaction/rt_sigprocmask/sigreturn,
	// needed by the manager to reap children and handle SIGHUP.
	CapSignal
	// CapFDOps permits close/fcntl/dup on already-open descriptors
	// but not open/openat -- a worker that has everything it needs
	// passed to it at exec time never opens a new path.
	CapFDOps
)

// Policy is an unordered set of Capability values a role needs before
// it starts touching request data.
type Policy map[Capability]bool

// NewPolicy builds a Policy from the given capabilities.
func NewPolicy(caps ...Capability) Policy {
	p := make(Policy, len(caps))
	for _, c := range caps {
		p[c] = true
	}
	return p
}

// WorkerPolicy is the tightest policy in kcgi-go: a field/body parser
// that received its listening and accepted sockets from its parent at
// exec time, and never needs to open a new file, fork, or exec.
func WorkerPolicy() Policy {
	return NewPolicy(CapRead, CapWrite, CapMemory, CapExit, CapFDOps)
}

// ControlPolicy additionally needs to multiplex and time out on
// several descriptors at once.
func ControlPolicy() Policy {
	return NewPolicy(CapRead, CapWrite, CapMemory, CapClock, CapPoll, CapExit, CapFDOps)
}

// ResponderPolicy covers the process running the application's own
// handler code: it receives already-parsed, already-validated Fields
// over IPC and writes a response back the same way, so its capability
// set is identical to the worker's, just named separately since it
// runs a distinct process role.
func ResponderPolicy() Policy {
	return NewPolicy(CapRead, CapWrite, CapMemory, CapExit, CapFDOps)
}

// ManagerPolicy is the least restrictive: it forks/execs workers and
// reaps them, so it keeps CapSignal; Apply filters it the same way as
// every other policy.
func ManagerPolicy() Policy {
	return NewPolicy(CapRead, CapWrite, CapMemory, CapClock, CapPoll, CapExit, CapSignal, CapFDOps)
}
