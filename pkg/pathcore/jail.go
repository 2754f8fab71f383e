/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pathcore

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// Jail is the builder-produced, immutable-after-init value holding the
// new root, the mirror table, and the runner-enabled flag. A Jail is
// safe for concurrent use by multiple supervisor goroutines once New
// returns, because nothing about it mutates afterwards.
type Jail struct {
	// id labels this jail instance in logs, metrics, and the system API.
	id string

	root          string
	mirrors       *Table
	runnerEnabled bool
	canon         *Canonicalizer
}

// Option configures a Jail at construction time, applied before the
// mirror table is sanitized.
type Option func(*jailOptions)

type jailOptions struct {
	mirrors []mirrorSpec
	runner  bool
}

type mirrorSpec struct {
	real, location string
}

// WithMirror registers a mirror: hostPath is required, guestLocation
// may be empty to request a symmetric mirror at the same path.
func WithMirror(hostPath, guestLocation string) Option {
	return func(o *jailOptions) {
		o.mirrors = append(o.mirrors, mirrorSpec{real: hostPath, location: guestLocation})
	}
}

// WithRunnerEnabled toggles the delayed-translation feature gate
// consumed by Translate.
func WithRunnerEnabled(enabled bool) Option {
	return func(o *jailOptions) { o.runner = enabled }
}

// New builds a Jail: canonicalizes newRoot, registers and sanitizes
// every mirror, and materializes dummy directories for the guest location
// of every mirror that sanitizes, symmetric or not. Failure is fatal only for the root itself; a mirror that
// fails to sanitize is logged and skipped.
func New(newRoot string, opts ...Option) (*Jail, error) {
	cfg := &jailOptions{}
	for _, opt := range opts {
		opt(cfg)
	}

	table := NewTable()
	// Add prepends, so with WithMirror(A) then WithMirror(B), B ends up
	// matched before A: newest registered wins.
	for _, m := range cfg.mirrors {
		table.Add(m.real, m.location)
	}

	canonicalRoot, err := hostRealpath(newRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "canonicalize new root %q", newRoot)
	}
	root := canonicalRoot
	if root == "/" {
		root = ""
	}

	j := &Jail{
		id:            xid.New().String(),
		root:          root,
		mirrors:       table,
		runnerEnabled: cfg.runner,
	}
	j.canon = NewCanonicalizer(j.root, j.mirrors)

	for _, m := range table.Entries() {
		j.sanitizeMirror(m)
	}

	return j, nil
}

// sanitizeMirror canonicalizes one entry's guest location under the
// root and materializes its dummy directories.
func (j *Jail) sanitizeMirror(m *Mirror) {
	scratch := m.Location
	m.Location = ""

	out := NewPathBuf()
	if err := out.SetString("/"); err != nil {
		logrus.Warnf("pathcore: mirror location %q too long, ignoring: %v", scratch, err)
		return
	}
	if err := j.canon.Canonicalize(0, scratch, true, out, 0); err != nil {
		logrus.Warnf("pathcore: mirror location %q failed to canonicalize, ignoring: %v", scratch, err)
		return
	}

	loc := out.String()
	if loc == "/" {
		logrus.Warnf("pathcore: mirror location %q canonicalizes to \"/\", ignoring", scratch)
		return
	}
	loc = strings.TrimSuffix(loc, "/")

	m.Location = loc
	m.NeedSubstitution = m.Real != loc

	createDummy(j.root, loc)
	m.Sanitized = true
}

// createDummy materializes placeholder directories under root so that a
// program walking toward an asymmetric mirror's guest location finds
// real parent directories.
func createDummy(root, guestLocation string) {
	hostLocation, err := JoinPaths(root, guestLocation)
	if err != nil {
		logrus.Warnf("pathcore: dummy path for %q too long, skipping", guestLocation)
		return
	}
	if _, err := os.Lstat(hostLocation); err == nil {
		return
	}

	base := root
	if base == "" {
		base = "/"
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(hostLocation, root), "/")

	cur := base
	for _, part := range strings.Split(rel, "/") {
		if part == "" {
			continue
		}
		next, err := JoinPaths(cur, part)
		if err != nil {
			logrus.Warnf("pathcore: dummy path component near %q too long, skipping", cur)
			return
		}
		cur = next
		if err := os.Mkdir(cur, 0777); err != nil && !os.IsExist(err) {
			logrus.Warnf("pathcore: mkdir %q for mirror dummy: %v", cur, err)
			return
		}
	}
}

// ID returns the jail's opaque instance ID, used to label logs, metrics,
// and system-API responses.
func (j *Jail) ID() string { return j.id }

// Root returns the canonical new root (empty string represents "/" so
// prefix operations are no-ops).
func (j *Jail) Root() string { return j.root }

// RunnerEnabled reports whether delayed translation is armed.
func (j *Jail) RunnerEnabled() bool { return j.runnerEnabled }

// Mirrors returns the jail's mirror table entries, in lookup order, for
// read-only introspection (the system API's /api/v1/jail endpoint).
func (j *Jail) Mirrors() []*Mirror { return j.mirrors.Entries() }
