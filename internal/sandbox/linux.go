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

//go:build linux

package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// capSyscalls maps each Capability to the syscall numbers it unlocks.
// Kept deliberately narrow: a role gets exactly the syscalls its
// capability set implies, nothing gained "just in case".
func capSyscalls(c Capability) []uintptr {
	switch c {
	case CapRead:
		return []uintptr{unix.SYS_READ, unix.SYS_READV, unix.SYS_RECVMSG, unix.SYS_RECVFROM}
	case CapWrite:
		return []uintptr{unix.SYS_WRITE, unix.SYS_WRITEV, unix.SYS_SENDMSG, unix.SYS_SENDTO}
	case CapMemory:
		return []uintptr{unix.SYS_MMAP, unix.SYS_MUNMAP, unix.SYS_BRK, unix.SYS_MREMAP, unix.SYS_MADVISE}
	case CapClock:
		return []uintptr{unix.SYS_CLOCK_GETTIME, unix.SYS_GETTIMEOFDAY}
	case CapPoll:
		return []uintptr{unix.SYS_POLL, unix.SYS_PPOLL, unix.SYS_EPOLL_WAIT, unix.SYS_EPOLL_CTL, unix.SYS_EPOLL_PWAIT}
	case CapExit:
		return []uintptr{unix.SYS_EXIT, unix.SYS_EXIT_GROUP}
	case CapSignal:
		return []uintptr{unix.SYS_RT_SIGACTION, unix.SYS_RT_SIGPROCMASK, unix.SYS_RT_SIGRETURN, unix.SYS_WAIT4}
	case CapFDOps:
		return []uintptr{unix.SYS_CLOSE, unix.SYS_FCNTL, unix.SYS_DUP, unix.SYS_DUP2}
	default:
		return nil
	}
}

// alwaysAllowed are syscalls every policy needs regardless of role:
// the ones the Go runtime itself issues on every scheduler tick plus
// the futex-based synchronisation goroutines rely on. Denying these
// would crash the runtime, not the attacker.
var alwaysAllowed = []uintptr{
	unix.SYS_FUTEX,
	unix.SYS_SCHED_YIELD,
	unix.SYS_SIGALTSTACK,
	unix.SYS_GETPID,
	unix.SYS_GETTID,
	unix.SYS_TGKILL,
	unix.SYS_RESTART_SYSCALL,
	unix.SYS_NANOSLEEP,
	unix.SYS_CLOCK_NANOSLEEP,
}

// buildFilter assembles a seccomp-bpf program: deny by default, allow
// each syscall the Policy names plus alwaysAllowed, and first verify
// the instruction's audit arch matches the running binary's, matching
// the structure of seccomp_ctx (validate arch, then jump table) in
// sandbox-seccomp-filter.c.
func buildFilter(p Policy) []unix.SockFilter {
	allowed := make(map[uintptr]bool)
	for c := range p {
		for _, sc := range capSyscalls(c) {
			allowed[sc] = true
		}
	}
	for _, sc := range alwaysAllowed {
		allowed[sc] = true
	}

	prog := []unix.SockFilter{
		// Load the arch field and confirm it matches our arch;
		// any mismatch (e.g. a 32-bit compat call) traps.
		{Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS, K: 4}, // offsetof(seccomp_data, arch)
		{Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K, Jt: 1, Jf: 0, K: auditArch},
		{Code: unix.BPF_RET | unix.BPF_K, K: unix.SECCOMP_RET_KILL_PROCESS},
		// Load the syscall number.
		{Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS, K: 0},
	}
	for sc := range allowed {
		prog = append(prog, unix.SockFilter{
			Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K, Jt: 0, Jf: 1, K: uint32(sc),
		}, unix.SockFilter{
			Code: unix.BPF_RET | unix.BPF_K, K: unix.SECCOMP_RET_ALLOW,
		})
	}
	prog = append(prog, unix.SockFilter{Code: unix.BPF_RET | unix.BPF_K, K: unix.SECCOMP_RET_KILL_PROCESS})
	return prog
}

// Apply installs p as a seccomp-bpf filter for the calling thread and
// every thread it subsequently creates (PR_SET_NO_NEW_PRIVS first, as
// the kernel requires of any unprivileged caller). It must run before
// the worker reads a single byte of request data, and it is
// irreversible: once installed, a policy can only be narrowed by a
// later call, never widened.
func Apply(p Policy) error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("sandbox: PR_SET_NO_NEW_PRIVS: %w", err)
	}
	filter := buildFilter(p)
	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	if err := unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&prog)), 0, 0); err != nil {
		return fmt.Errorf("sandbox: PR_SET_SECCOMP: %w", err)
	}
	return nil
}
