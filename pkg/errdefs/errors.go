/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package errdefs holds the sentinel errors shared across the jail core,
// the supervisor, and the CLI.
package errdefs

import (
	"syscall"

	"github.com/pkg/errors"
)

// Sentinels for the POSIX errno values surfaced at the translate and
// detranslate boundary. Each wraps the matching syscall.Errno
// so callers can still recover the raw errno with errors.As.
var (
	ErrNameTooLong   = wrapErrno(syscall.ENAMETOOLONG, "component name or path too long")
	ErrLoop          = wrapErrno(syscall.ELOOP, "too many levels of symbolic links")
	ErrInvalid       = wrapErrno(syscall.EINVAL, "relative path given without an absolute base")
	ErrNotADirectory = wrapErrno(syscall.ENOTDIR, "base descriptor does not refer to a directory")
	ErrPermission    = wrapErrno(syscall.EPERM, "operation not permitted outside the new root")
	ErrAccess        = wrapErrno(syscall.EACCES, "access denied")

	// ErrDenied reports that a translated path escaped containment, either
	// because detranslation was asked to sanity-check a path outside the
	// root, or because the post-canonicalization realpath check found the
	// child had escaped via a race the canonicalizer couldn't observe.
	// The boundary reports this as -EPERM.
	ErrDenied = wrapErrno(syscall.EPERM, "path escapes the new root")

	// ErrNotAMirror is an error form of "no mirror entry matches this
	// path". Table.Substitute reports that outcome as StatusNotAMirror and
	// does not return this error; it is never surfaced to a
	// translate/detranslate caller.
	ErrNotAMirror = errors.New("path does not match any mirror")

	ErrNotInitialized = errors.New("jail has not been built")
)

type errnoError struct {
	errno syscall.Errno
	msg   string
}

func wrapErrno(errno syscall.Errno, msg string) error {
	return &errnoError{errno: errno, msg: msg}
}

func (e *errnoError) Error() string { return e.msg + ": " + e.errno.Error() }

func (e *errnoError) Unwrap() error { return e.errno }

// Errno extracts the POSIX errno a sentinel here wraps, for callers (like
// the supervisor) that must complete an intercepted syscall with the
// matching negative return value.
func Errno(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}

// IsNameTooLong returns true if err is, or wraps, ErrNameTooLong.
func IsNameTooLong(err error) bool { return errors.Is(err, ErrNameTooLong) }

// IsLoop returns true if err is, or wraps, ErrLoop.
func IsLoop(err error) bool { return errors.Is(err, ErrLoop) }

// IsDenied returns true if err is, or wraps, ErrDenied.
func IsDenied(err error) bool { return errors.Is(err, ErrDenied) }

// IsNotAMirror returns true if err is, or wraps, ErrNotAMirror.
func IsNotAMirror(err error) bool { return errors.Is(err, ErrNotAMirror) }
