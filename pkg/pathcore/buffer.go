/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package pathcore implements the guest-to-host path canonicalizer, the
// mirror (bind-mount-like) table, and the translate/detranslate entry
// points used by a syscall-interception sandbox to present a traced
// child with an alternate filesystem root.
package pathcore

import (
	"strings"

	"github.com/pathjail/pathjail/pkg/errdefs"
)

const (
	// PathMax bounds every path this package hands out or accepts, same
	// contract as POSIX PATH_MAX.
	PathMax = 4096
	// NameMax bounds a single path component, same contract as POSIX
	// NAME_MAX.
	NameMax = 255
	// MaxSymlinkDepth bounds recursive symlink resolution.
	MaxSymlinkDepth = 40
	// AtFDCwd mirrors the AT_FDCWD sentinel: "relative to cwd".
	AtFDCwd = -100
)

// Status classifies the component next_component just extracted.
type Status int

const (
	// StatusMore indicates further components follow.
	StatusMore Status = iota
	// StatusFinalNormal indicates this was the last component and the
	// input did not end in a separator.
	StatusFinalNormal
	// StatusFinalForceDir indicates this was the last component but the
	// input ended in at least one separator, so a directory is required.
	StatusFinalForceDir
)

// PathBuf is a PathMax-bounded, allocation-free path buffer: every
// mutation that would grow it past PathMax fails closed with
// errdefs.ErrNameTooLong instead of silently reallocating.
type PathBuf struct {
	buf [PathMax]byte
	n   int
}

// NewPathBuf returns an empty buffer.
func NewPathBuf() *PathBuf {
	return &PathBuf{}
}

// String returns the buffer's current contents.
func (p *PathBuf) String() string {
	return string(p.buf[:p.n])
}

// Len reports the buffer's current length in bytes.
func (p *PathBuf) Len() int {
	return p.n
}

// SetString overwrites the buffer's contents, failing if s does not fit.
func (p *PathBuf) SetString(s string) error {
	if len(s) > PathMax-1 {
		return errdefs.ErrNameTooLong
	}
	p.n = copy(p.buf[:], s)
	return nil
}

// Reset empties the buffer.
func (p *PathBuf) Reset() {
	p.n = 0
}

// Cursor walks the components of a guest path, mirroring next_component.
type Cursor struct {
	path string
	pos  int
}

// NewCursor returns a cursor positioned at the start of path.
func NewCursor(path string) *Cursor {
	return &Cursor{path: path}
}

// Next extracts the next component. ok is false once the path is
// exhausted (nothing but separators remained), in which case the caller
// should stop iterating.
func (c *Cursor) Next() (name string, status Status, ok bool, err error) {
	for c.pos < len(c.path) && c.path[c.pos] == '/' {
		c.pos++
	}
	if c.pos >= len(c.path) {
		return "", StatusMore, false, nil
	}

	start := c.pos
	for c.pos < len(c.path) && c.path[c.pos] != '/' {
		c.pos++
	}
	name = c.path[start:c.pos]
	if len(name) >= NameMax {
		return "", StatusMore, true, errdefs.ErrNameTooLong
	}

	sawSeparator := false
	for c.pos < len(c.path) && c.path[c.pos] == '/' {
		sawSeparator = true
		c.pos++
	}

	if c.pos >= len(c.path) {
		if sawSeparator {
			return name, StatusFinalForceDir, true, nil
		}
		return name, StatusFinalNormal, true, nil
	}
	return name, StatusMore, true, nil
}

// PopComponent removes the last component of an absolute, sanitized path
// in place. It is a no-op on "/".
func PopComponent(p *PathBuf) {
	s := p.String()
	if s == "" || s == "/" {
		_ = p.SetString("/")
		return
	}

	end := len(s)
	for end > 1 && s[end-1] == '/' {
		end--
	}

	idx := strings.LastIndexByte(s[:end], '/')
	for idx > 0 && s[idx-1] == '/' {
		idx--
	}
	if idx <= 0 {
		_ = p.SetString("/")
		return
	}
	_ = p.SetString(s[:idx])
}

// JoinPaths concatenates the non-empty parts, inserting exactly one "/"
// between parts when neither side already supplies one.
func JoinPaths(parts ...string) (string, error) {
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		needSep := false
		if b.Len() > 0 {
			lastByte := b.String()[b.Len()-1]
			if lastByte == '/' && part[0] == '/' {
				part = part[1:]
			} else if lastByte != '/' && part[0] != '/' {
				needSep = true
			}
		}
		if part == "" {
			continue
		}
		grow := len(part)
		if needSep {
			grow++
		}
		if b.Len()+grow > PathMax-1 {
			return "", errdefs.ErrNameTooLong
		}
		if needSep {
			b.WriteByte('/')
		}
		b.WriteString(part)
	}
	return b.String(), nil
}
