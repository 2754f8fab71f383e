/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pathcore

import (
	"os"
	"strconv"
	"strings"

	"github.com/pathjail/pathjail/pkg/errdefs"
)

// Canonicalizer resolves a guest path against a guest base into a
// sanitized guest path, fully dereferencing intermediate symlinks
// against the host filesystem, honouring a mirror table and the
// /proc/self -> /proc/$pid rewrite.
type Canonicalizer struct {
	root    string
	mirrors *Table
}

// NewCanonicalizer builds a Canonicalizer against the given new root (R,
// already canonical; "" represents "/") and mirror table.
func NewCanonicalizer(root string, mirrors *Table) *Canonicalizer {
	return &Canonicalizer{root: root, mirrors: mirrors}
}

// Canonicalize resolves input (possibly relative) to a guest-side path
// written into out. If input is relative, out must already hold an
// absolute sanitized base. depth counts recursive symlink dereferences
// and must start at 0 from an external caller.
func (c *Canonicalizer) Canonicalize(pid int, input string, derefFinal bool, out *PathBuf, depth int) error {
	if depth > MaxSymlinkDepth {
		return errdefs.ErrLoop
	}

	absolute := strings.HasPrefix(input, "/")
	if absolute {
		if err := out.SetString("/"); err != nil {
			return err
		}
	} else if out.Len() == 0 || out.String()[0] != '/' {
		return errdefs.ErrInvalid
	}

	cursor := NewCursor(input)
	lastStatus := StatusFinalNormal

	for {
		name, status, ok, err := cursor.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		lastStatus = status

		switch name {
		case ".":
			continue
		case "..":
			PopComponent(out)
			continue
		}

		isFinal := status != StatusMore
		if name == "self" && out.String() == "/proc" && (!isFinal || derefFinal) {
			name = strconv.Itoa(pid)
		}

		tentative, err := JoinPaths(out.String(), name)
		if err != nil {
			return err
		}

		probe, subStatus, err := c.mirrors.Substitute(DirLocation, tentative)
		if err != nil {
			return err
		}
		if subStatus == StatusNotAMirror {
			probe, err = JoinPaths(c.root, tentative)
			if err != nil {
				return err
			}
		}

		fi, statErr := os.Lstat(probe)
		isSymlink := statErr == nil && fi.Mode()&os.ModeSymlink != 0
		commit := statErr != nil || !isSymlink || (isFinal && status == StatusFinalNormal && !derefFinal)

		if commit {
			if err := out.SetString(tentative); err != nil {
				return err
			}
			continue
		}

		target, err := os.Readlink(probe)
		if err != nil {
			return err
		}
		if len(target) > PathMax-1 {
			return errdefs.ErrNameTooLong
		}

		// A symlink whose stored value happens to embed R (e.g.
		// /proc/self/cwd) is normalized back to guest space before we
		// resolve it further.
		target, _, err = detranslate(c.mirrors, c.root, target, false)
		if err != nil {
			return err
		}

		if err := c.Canonicalize(pid, target, true, out, depth+1); err != nil {
			return err
		}
	}

	if lastStatus == StatusFinalForceDir && !strings.HasSuffix(out.String(), "/") {
		if err := out.SetString(out.String() + "/"); err != nil {
			return err
		}
	}

	return nil
}
