/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pathcore

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pathjail/pathjail/pkg/errdefs"
	"github.com/pathjail/pathjail/pkg/metrics"
)

// Translate produces the host path a syscall-interception layer should
// substitute for fakePath, the guest path named by child (nil meaning
// "this process"), relative to dirFD (AtFDCwd for the process's current
// directory). derefFinal controls whether the last component is itself
// dereferenced if it is a symlink, same as the distinction between
// lstat-like and stat-like syscalls.
func (j *Jail) Translate(child *Child, dirFD int, fakePath string, derefFinal bool) (string, error) {
	start := time.Now()
	result, err := j.translate(child, dirFD, fakePath, derefFinal)
	metrics.TranslateDuration.WithLabelValues(j.id).Observe(time.Since(start).Seconds())
	metrics.TranslateTotal.WithLabelValues(j.id, translateOutcome(err)).Inc()
	return result, err
}

func translateOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errdefs.IsDenied(err):
		return "denied"
	case errdefs.IsNameTooLong(err):
		return "name_too_long"
	case errdefs.IsLoop(err):
		return "loop"
	default:
		return "error"
	}
}

func (j *Jail) translate(child *Child, dirFD int, fakePath string, derefFinal bool) (string, error) {
	pid := os.Getpid()
	if child != nil {
		pid = child.PID
	}

	out := NewPathBuf()
	if strings.HasPrefix(fakePath, "/") {
		if err := out.SetString("/"); err != nil {
			return "", err
		}
	} else {
		base, err := j.resolveBase(pid, dirFD)
		if err != nil {
			return "", err
		}
		if err := out.SetString(base); err != nil {
			return "", err
		}
	}

	if err := j.canon.Canonicalize(pid, fakePath, derefFinal, out, 0); err != nil {
		return "", err
	}

	// Delayed translation: while the child's trigger is armed and
	// differs from fakePath, hand back the verbatim input so a runner can
	// load its own dependencies from host locations before the jail takes
	// effect.
	if j.runnerEnabled && child != nil && child.isDelayed(fakePath) {
		metrics.DelayedTranslationsTotal.WithLabelValues(j.id).Inc()
		return fakePath, nil
	}

	guestResult := out.String()
	if substituted, status, err := j.mirrors.Substitute(DirLocation, guestResult); err != nil {
		return "", err
	} else if status != StatusNotAMirror {
		if m := j.mirrors.match(DirLocation, guestResult); m != nil {
			metrics.MirrorHitsTotal.WithLabelValues(j.id, m.Location).Inc()
		}
		return substituted, nil
	}

	hostResult, err := JoinPaths(j.root, guestResult)
	if err != nil {
		return "", err
	}

	if derefFinal {
		// Best-effort containment probe. It cannot be race-free against a
		// cooperating-but-untrusted child; it only catches what the
		// canonicalizer couldn't see.
		if real, err := hostRealpath(hostResult); err == nil {
			if !hasPathPrefix(real, j.root) {
				return "", errdefs.ErrDenied
			}
		}
	}

	return hostResult, nil
}

// resolveBase establishes the absolute guest-side base for a relative
// fakePath from the child's cwd or the named descriptor.
func (j *Jail) resolveBase(pid, dirFD int) (string, error) {
	var fdPath string
	if dirFD == AtFDCwd {
		fdPath = fmt.Sprintf("/proc/%d/cwd", pid)
	} else {
		fdPath = fmt.Sprintf("/proc/%d/fd/%d", pid, dirFD)
	}

	link, err := os.Readlink(fdPath)
	if err != nil {
		return "", err
	}

	if dirFD != AtFDCwd {
		fi, err := os.Stat(fdPath)
		if err != nil {
			return "", err
		}
		if !fi.IsDir() {
			return "", errdefs.ErrNotADirectory
		}
	}

	base, _, err := detranslate(j.mirrors, j.root, link, true)
	if err != nil {
		return "", err
	}
	return base, nil
}

// Detranslate hands a host-side path back to guest space, for reporting
// paths to the child (e.g. readlink on /proc/$pid/fd/*). When
// sanityCheck is true and path neither matches a mirror nor starts with
// R, it fails with errdefs.ErrDenied instead of silently returning the
// untouched input.
func (j *Jail) Detranslate(path string, sanityCheck bool) (string, error) {
	result, changed, err := detranslate(j.mirrors, j.root, path, sanityCheck)
	if err != nil {
		return "", err
	}
	if !changed {
		return path, nil
	}
	return result, nil
}

// CheckFD performs the attach-time containment audit: it walks pid's
// open descriptors and returns -pid if any target escapes the jail's
// root, 0 otherwise.
func (j *Jail) CheckFD(pid int) int {
	rc := ForeachFD(pid, checkFDContainment(j.root))
	if rc != 0 {
		metrics.FDAuditViolationsTotal.WithLabelValues(j.id).Inc()
	}
	return rc
}

// ListOpenFD logs every open descriptor of pid informationally. Always
// returns 0.
func (j *Jail) ListOpenFD(pid int) int {
	return ForeachFD(pid, listOpenFD())
}
