/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package supervisor

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/pathjail/pathjail/pkg/pathcore"
)

func newOpenJail(t *testing.T) *pathcore.Jail {
	t.Helper()
	jail, err := pathcore.New("/")
	require.NoError(t, err)
	return jail
}

func TestSpawnRegistersSession(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep(1) not available")
	}

	sup := New(newOpenJail(t))
	sess, err := sup.Spawn([]string{path, "5"}, "")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotZero(t, sess.PID)
	assert.NotEmpty(t, sess.ID)

	sessions := sup.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, sess.PID, sessions[0].PID)

	require.NoError(t, sup.Continue(sess))
	require.NoError(t, unix.Kill(sess.PID, unix.SIGKILL))
	_, _ = sup.Wait(sess)
}

func TestSpawnRejectsEmptyArgv(t *testing.T) {
	sup := New(newOpenJail(t))
	_, err := sup.Spawn(nil, "")
	require.Error(t, err)
}

func TestSpawnArmsDelayedTrigger(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep(1) not available")
	}

	sup := New(newOpenJail(t))
	sess, err := sup.Spawn([]string{path, "5"}, "/tmp/trigger")
	require.NoError(t, err)

	trigger, armed := sess.Child.Trigger()
	assert.True(t, armed)
	assert.Equal(t, "/tmp/trigger", trigger)

	require.NoError(t, sup.Continue(sess))
	require.NoError(t, unix.Kill(sess.PID, unix.SIGKILL))
	_, _ = sup.Wait(sess)
}

func TestDetachForgetsSession(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep(1) not available")
	}

	sup := New(newOpenJail(t))
	sess, err := sup.Spawn([]string{path, "5"}, "")
	require.NoError(t, err)

	require.NoError(t, sup.Detach(sess))
	assert.Empty(t, sup.Sessions())

	require.NoError(t, unix.Kill(sess.PID, unix.SIGKILL))
	_, _ = sup.Wait(sess)
}

func TestWaitRejectsAttachOnlySession(t *testing.T) {
	sup := New(newOpenJail(t))
	sess := &Session{ID: "x", PID: 1}
	_, err := sup.Wait(sess)
	require.Error(t, err)
}

func TestSessionsSnapshotIsIndependent(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep(1) not available")
	}

	sup := New(newOpenJail(t))
	sess, err := sup.Spawn([]string{path, "5"}, "")
	require.NoError(t, err)

	sess.Child.SetTrigger("/etc/later")
	snap := sup.Sessions()
	require.Len(t, snap, 1)
	trigger, armed := snap[0].Child.Trigger()
	assert.True(t, armed)
	assert.Equal(t, "/etc/later", trigger)

	// Mutating the live Child after the snapshot must not affect it.
	sess.Child.SetTrigger("/etc/even-later")
	trigger, _ = snap[0].Child.Trigger()
	assert.Equal(t, "/etc/later", trigger)

	require.NoError(t, sup.Continue(sess))
	require.NoError(t, unix.Kill(sess.PID, unix.SIGKILL))
	_, _ = sup.Wait(sess)
}
