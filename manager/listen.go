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

package manager

import (
	"context"
	"fmt"
	"net"
	"os"
	"syscall"
)

// BindListener recreates kfcgi main()'s socket setup: unlink any
// stale socket, bind with a restrictive umask, optionally chown it to
// SocketUser, then listen. The listener uses the operating system's
// default backlog; ListenBacklog is not applied.
// It must run before chrooting, since SocketPath is resolved against
// the real filesystem root.
func (c Config) BindListener() (net.Listener, error) {
	os.Remove(c.SocketPath)

	oldMask := syscall.Umask(0117) // S_IXUSR|S_IXGRP|S_IWOTH|S_IROTH|S_IXOTH
	defer syscall.Umask(oldMask)

	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "unix", c.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("manager: listen %s: %w", c.SocketPath, err)
	}

	if c.SocketUser != "" {
		uid, gid, err := resolveUser(c.SocketUser)
		if err != nil {
			ln.Close()
			return nil, err
		}
		if err := os.Chown(c.SocketPath, uid, gid); err != nil {
			ln.Close()
			return nil, fmt.Errorf("manager: chown %s: %w", c.SocketPath, err)
		}
	}

	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(true)
	}

	return ln, nil
}

// Jail chroots into c.ChrootPath and, if c.ProcessUser is set, drops
// to that user, in the order kfcgi's main() performs them: jail the
// filesystem first, then drop privileges, so a compromised process
// that somehow still has root cannot escape the chroot to fix that.
func (c Config) Jail() error {
	if err := chrootAndChdir(c.ChrootPath); err != nil {
		return err
	}
	if c.ProcessUser != "" {
		uid, gid, err := resolveUser(c.ProcessUser)
		if err != nil {
			return err
		}
		if err := dropProcessPrivileges(uid, gid); err != nil {
			return err
		}
	}
	return nil
}
