/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pathcore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootSlashIsEmptyString(t *testing.T) {
	jail, err := New("/")
	require.NoError(t, err)
	assert.Equal(t, "", jail.Root())
}

func TestNewSanitizesMirrorAndCreatesDummy(t *testing.T) {
	root := t.TempDir()
	real := t.TempDir()

	jail, err := New(root, WithMirror(real, "/opt/asym/lib"))
	require.NoError(t, err)

	mirrors := jail.Mirrors()
	require.Len(t, mirrors, 1)
	m := mirrors[0]
	assert.True(t, m.Sanitized)
	assert.Equal(t, "/opt/asym/lib", m.Location)
	assert.True(t, m.NeedSubstitution)

	info, err := os.Lstat(filepath.Join(root, "opt", "asym", "lib"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewSymmetricMirrorNoSubstitution(t *testing.T) {
	root := t.TempDir()

	// A symmetric mirror: an empty guestLocation defaults to hostPath
	// itself, and "/tmp" canonicalizes to the same guest path it started
	// as (nothing under root shadows it), so Real == Location textually.
	jail, err := New(root, WithMirror("/tmp", ""))
	require.NoError(t, err)

	m := jail.Mirrors()[0]
	assert.True(t, m.Sanitized)
	assert.Equal(t, "/tmp", m.Location)
	assert.False(t, m.NeedSubstitution)
}

func TestNewRejectsMirrorLocationRoot(t *testing.T) {
	root := t.TempDir()
	real := t.TempDir()

	jail, err := New(root, WithMirror(real, "/"))
	require.NoError(t, err)

	m := jail.Mirrors()[0]
	assert.False(t, m.Sanitized)

	_, status, err := jail.mirrors.Substitute(DirReal, real)
	require.NoError(t, err)
	assert.Equal(t, StatusNotAMirror, status)
}

func TestMirrorRegistrationOrderNewestWins(t *testing.T) {
	root := t.TempDir()
	realOld := t.TempDir()
	realNew := t.TempDir()

	jail, err := New(root, WithMirror(realOld, "/lib"), WithMirror(realNew, "/lib"))
	require.NoError(t, err)

	got, err := jail.Translate(nil, AtFDCwd, "/lib/x", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(realNew, "x"), got)
}
