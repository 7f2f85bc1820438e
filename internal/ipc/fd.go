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

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// SendFD ships a single file descriptor across a unix(7) socket as
// SCM_RIGHTS ancillary data, accompanied by payload as the regular
// message body, which may be empty (control's SendConn passes none).
// It is the Go analogue of fullwritefd.
func SendFD(sock *os.File, fd int, payload []byte) error {
	rights := unix.UnixRights(fd)
	sockfd := int(sock.Fd())
	return unix.Sendmsg(sockfd, payload, rights, nil, 0)
}

// RecvFD receives a single file descriptor sent by SendFD, returning
// it as an *os.File along with the accompanying payload. payloadLen
// must match the length SendFD was called with.
func RecvFD(sock *os.File, payloadLen int) (*os.File, []byte, error) {
	sockfd := int(sock.Fd())
	payload := make([]byte, payloadLen)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := unix.Recvmsg(sockfd, payload, oob, 0)
	if err != nil {
		return nil, nil, err
	}
	if n != payloadLen {
		return nil, nil, fmt.Errorf("ipc: short recvmsg payload: got %d want %d", n, payloadLen)
	}

	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, nil, err
	}
	if len(cmsgs) == 0 {
		return nil, nil, fmt.Errorf("ipc: recvmsg carried no ancillary data")
	}
	fds, err := unix.ParseUnixRights(&cmsgs[0])
	if err != nil {
		return nil, nil, err
	}
	if len(fds) != 1 {
		return nil, nil, fmt.Errorf("ipc: recvmsg carried %d fds, want 1", len(fds))
	}
	return os.NewFile(uintptr(fds[0]), "ipc-fd"), payload[:n], nil
}

// NewSocketpair creates a connected pair of stream-mode unix sockets
// for a parent to hand one end to a freshly self-reexec'd child via
// exec.Cmd.ExtraFiles, the Go substitute for fork(2) plus an
// inherited fd that the original C implementation relies on.
func NewSocketpair() (parent, child *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, err
	}
	return os.NewFile(uintptr(fds[0]), "ipc-parent"), os.NewFile(uintptr(fds[1]), "ipc-child"), nil
}
