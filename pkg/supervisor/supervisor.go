/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package supervisor implements the ptrace attach/spawn harness: it
// produces a stopped tracee, performs the attach-time containment check
// against a pathcore.Jail, and owns the resulting Session/Child
// bookkeeping. Full syscall argument interception lives above this
// package; it carries just enough of the ptrace lifecycle to drive the
// jail core end to end.
package supervisor

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/pathjail/pathjail/pkg/pathcore"
)

// Session pairs a pathcore.Child descriptor with the bookkeeping the
// supervisor itself needs: an opaque ID for logging/metrics labels and
// the system API, and the spawned or attached OS pid.
type Session struct {
	ID        string
	PID       int
	StartedAt time.Time

	Child *pathcore.Child

	cmd *exec.Cmd
}

// Supervisor spawns or attaches to traced children under a single Jail
// and keeps a map of their Sessions. The mutex is the only mutable
// shared state here: a Jail, once built, is read-only.
type Supervisor struct {
	jail *pathcore.Jail

	mu       sync.Mutex
	sessions map[string]*Session
}

// New returns a Supervisor that performs attach-time containment checks
// (jail.CheckFD) against jail.
func New(jail *pathcore.Jail) *Supervisor {
	return &Supervisor{
		jail:     jail,
		sessions: make(map[string]*Session),
	}
}

// Spawn forks and execs argv[0] under PTRACE_TRACEME, waits for the
// initial post-exec stop, performs the attach-time containment check,
// and on success returns a Session wrapping a fresh Child. triggerPath
// arms delayed translation when non-empty. A CheckFD failure kills the
// child and returns an error, so the caller never observes a usable
// Session for it.
func (s *Supervisor) Spawn(argv []string, triggerPath string) (*Session, error) {
	if len(argv) == 0 {
		return nil, errors.New("spawn: argv must name a program")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %q", argv[0])
	}
	pid := cmd.Process.Pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, errors.Wrapf(err, "wait for initial stop of pid %d", pid)
	}

	if rc := s.jail.CheckFD(pid); rc != 0 {
		logrus.Warnf("supervisor: pid %d failed attach-time containment check, killing", pid)
		_ = unix.Kill(pid, unix.SIGKILL)
		_ = cmd.Wait()
		return nil, errors.Errorf("pid %d: open descriptor escapes the new root", pid)
	}

	child := childFor(pid, triggerPath)
	sess := &Session{
		ID:        xid.New().String(),
		PID:       pid,
		StartedAt: time.Now(),
		Child:     child,
		cmd:       cmd,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess, nil
}

// Attach seizes an already-running process, performs the same
// containment check as Spawn, and registers a Session for it.
func (s *Supervisor) Attach(pid int, triggerPath string) (*Session, error) {
	if err := unix.PtraceAttach(pid); err != nil {
		return nil, errors.Wrapf(err, "ptrace attach pid %d", pid)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, errors.Wrapf(err, "wait for attach stop of pid %d", pid)
	}

	if rc := s.jail.CheckFD(pid); rc != 0 {
		logrus.Warnf("supervisor: pid %d failed attach-time containment check, detaching", pid)
		_ = unix.PtraceDetach(pid)
		return nil, errors.Errorf("pid %d: open descriptor escapes the new root", pid)
	}

	sess := &Session{
		ID:        xid.New().String(),
		PID:       pid,
		StartedAt: time.Now(),
		Child:     childFor(pid, triggerPath),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess, nil
}

func childFor(pid int, triggerPath string) *pathcore.Child {
	if triggerPath == "" {
		return pathcore.NewChild(pid)
	}
	return pathcore.NewChildWithTrigger(pid, triggerPath)
}

// Continue resumes a stopped tracee (PTRACE_CONT), letting the syscall-
// interception layer (out of scope here) take over.
func (s *Supervisor) Continue(sess *Session) error {
	return unix.PtraceCont(sess.PID, 0)
}

// Detach releases ptrace control of a Session's tracee and forgets it.
func (s *Supervisor) Detach(sess *Session) error {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	return unix.PtraceDetach(sess.PID)
}

// Wait blocks until a Spawn-created Session's process exits. It is not
// meaningful for an Attach-created Session, which this supervisor never
// forked.
func (s *Supervisor) Wait(sess *Session) (*os.ProcessState, error) {
	if sess.cmd == nil {
		return nil, errors.New("wait: session was not created by Spawn")
	}
	err := sess.cmd.Wait()
	return sess.cmd.ProcessState, err
}

// Sessions returns a snapshot of every tracked Session, deep-copied so
// the caller (typically the system API's HTTP handler) never races a
// live trigger mutation.
func (s *Supervisor) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		trigger, armed := sess.Child.Trigger()
		var child *pathcore.Child
		if armed {
			child = pathcore.NewChildWithTrigger(sess.PID, trigger)
		} else {
			child = pathcore.NewChild(sess.PID)
		}
		clone := deepcopy.Copy(*sess).(Session)
		clone.Child = child
		clone.cmd = nil
		out = append(out, &clone)
	}
	return out
}
