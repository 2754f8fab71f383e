/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pathcore

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pathjail/pathjail/pkg/errdefs"
)

// Direction selects which side of a Mirror a Substitute lookup matches
// against.
type Direction int

const (
	// DirLocation matches against the mirror's guest Location.
	DirLocation Direction = iota
	// DirReal matches against the mirror's host Real path.
	DirReal
)

// SubstituteStatus reports the outcome of a Table.Substitute lookup.
type SubstituteStatus int

const (
	// StatusNotAMirror means no entry matched.
	StatusNotAMirror SubstituteStatus = iota
	// StatusMatchedNoSubstitution means an entry matched but its Real and
	// Location are textually identical (a symmetric mirror), so the
	// input is returned unchanged.
	StatusMatchedNoSubstitution
	// StatusSubstituted means an entry matched and the matching prefix
	// was rewritten to the other side.
	StatusSubstituted
)

// Mirror is a single (host-real, guest-location) bind-like redirection.
type Mirror struct {
	// Real is the mirror's host path, always sanitized.
	Real string
	// Location is the mirror's guest path. Raw until module init, then
	// replaced by its canonicalization under the new root.
	Location string
	// Sanitized is true exactly once init has successfully canonicalized
	// this entry. Entries that fail sanitization stay false forever and
	// are ignored by every lookup.
	Sanitized bool
	// NeedSubstitution is true iff Real differs textually from the
	// canonicalized Location (an asymmetric mirror).
	NeedSubstitution bool
}

// Table is the ordered collection of mirror entries. Entries are
// prepended on registration, so iteration order is newest-registered
// first; the first sanitized match wins.
type Table struct {
	entries []*Mirror
}

// NewTable returns an empty mirror table.
func NewTable() *Table {
	return &Table{}
}

// Add registers a mirror. hostPath is canonicalized immediately via the
// host's real path resolver; on failure the entry is dropped with a
// warning (the table has nothing bounded to retry against). guestLocation
// defaults to the raw hostPath when empty. The new entry is unsanitized
// until Sanitize runs at module init.
func (t *Table) Add(hostPath, guestLocation string) {
	real, err := hostRealpath(hostPath)
	if err != nil {
		logrus.Warnf("pathcore: mirror host path %q does not resolve, ignoring: %v", hostPath, err)
		return
	}
	if guestLocation == "" {
		guestLocation = hostPath
	}
	t.entries = append([]*Mirror{{Real: real, Location: guestLocation}}, t.entries...)
}

// Entries returns the table's entries in lookup order (newest first),
// for the module-init sanitization pass.
func (t *Table) Entries() []*Mirror {
	return t.entries
}

// Substitute scans the sanitized entries in lookup order for one whose
// ref side (selected by dir) is a component-boundary prefix of path. On a
// match it returns the substituted (or unchanged, for a symmetric mirror)
// path. Matching never looks at unsanitized entries.
func (t *Table) Substitute(dir Direction, path string) (string, SubstituteStatus, error) {
	m := t.match(dir, path)
	if m == nil {
		return "", StatusNotAMirror, nil
	}

	if !m.NeedSubstitution {
		return path, StatusMatchedNoSubstitution, nil
	}

	ref, antiRef := m.sides(dir)
	tail := path[len(ref):]
	if len(antiRef)+len(tail) > PathMax-1 {
		return "", 0, errdefs.ErrNameTooLong
	}
	return antiRef + tail, StatusSubstituted, nil
}

// match returns the first sanitized entry whose dir side is a
// component-boundary prefix of path, or nil.
func (t *Table) match(dir Direction, path string) *Mirror {
	for _, m := range t.entries {
		if !m.Sanitized {
			continue
		}
		ref, _ := m.sides(dir)

		if len(ref) > len(path) {
			continue
		}
		if len(path) > len(ref) && path[len(ref)] != '/' {
			continue
		}
		if path[:len(ref)] != ref {
			continue
		}
		return m
	}
	return nil
}

func (m *Mirror) sides(dir Direction) (ref, antiRef string) {
	if dir == DirReal {
		return m.Real, m.Location
	}
	return m.Location, m.Real
}

// hostRealpath is the host's real-path resolver equivalent to POSIX
// realpath(3): make the path absolute, then fully dereference symlinks.
func hostRealpath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, "make %q absolute", p)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrapf(err, "resolve symlinks in %q", abs)
	}
	return real, nil
}
