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
	"fmt"
	"os/user"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// resolveUser looks up a username the same way kfcgi's getpwnam call
// does, returning the uid/gid to drop to.
func resolveUser(name string) (uid, gid int, err error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, fmt.Errorf("manager: no such user %q: %w", name, err)
	}
	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, err
	}
	gid, err = strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}

// chrootAndChdir jails the process's view of the filesystem to dir,
// matching kfcgi main()'s chroot(chpath) + chdir("/") pair. It must be
// called while still root, before dropProcessPrivileges.
func chrootAndChdir(dir string) error {
	if err := unix.Chroot(dir); err != nil {
		return fmt.Errorf("manager: chroot %s: %w", dir, err)
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("manager: chdir /: %w", err)
	}
	return nil
}

// dropProcessPrivileges sets the real/effective gid then uid to the
// target user's, then verifies root cannot be regained, exactly the
// paranoid check kfcgi's main() performs ("managed to regain root
// privileges: aborting") since on some platforms calling setuid
// twice in the wrong order silently fails to drop saved-set-uid.
func dropProcessPrivileges(uid, gid int) error {
	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("manager: setgid: %w", err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("manager: setuid: %w", err)
	}
	if err := syscall.Setuid(0); err == nil {
		return fmt.Errorf("manager: managed to regain root privileges, aborting")
	}
	return nil
}
