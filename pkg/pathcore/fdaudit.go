/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pathcore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
)

// FdCallback is invoked once per open descriptor discovered by ForeachFD.
// The first negative return short-circuits the walk and is propagated to
// the caller; any other return continues the walk.
type FdCallback func(pid, fd int, target string) int

// ForeachFD enumerates /proc/$pid/fd, reads each entry as a symlink, and
// invokes callback(pid, fd, target) for every descriptor whose target is
// an absolute path (sockets, pipes, and anon-inodes are skipped, since
// their readlink targets never start with "/"). Errors opening the
// directory are swallowed.
func ForeachFD(pid int, callback FdCallback) int {
	dir := fmt.Sprintf("/proc/%d/fd", pid)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	for _, entry := range entries {
		fd, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		target, err := os.Readlink(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if len(target) == 0 || target[0] != '/' {
			continue
		}
		if rc := callback(pid, fd, target); rc < 0 {
			return rc
		}
	}
	return 0
}

// checkFDContainment rejects any descriptor whose target escapes root,
// signalling the violation with the -pid sentinel distinct from any
// -errno.
func checkFDContainment(root string) FdCallback {
	return func(pid, _ int, target string) int {
		if root != "" && !hasPathPrefix(target, root) {
			return -pid
		}
		return 0
	}
}

// listOpenFD logs each descriptor informationally and always continues
// the walk.
func listOpenFD() FdCallback {
	return func(pid, fd int, target string) int {
		logrus.Infof("pathcore: pid %d fd %d -> %s", pid, fd, target)
		return 0
	}
}
