/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pathcore

import "sync"

// Child is the interception layer's per-traced-process descriptor. The
// core reads and mutates only Trigger; everything else (pid bookkeeping,
// ptrace state) belongs to the caller.
//
// A single child is only ever touched from one goroutine at a time in
// the cooperative-tracee model, but the supervisor keeps one Child
// per tracee in a shared map, so the mutex guards cross-child concurrent
// access to this particular entry rather than any intra-child race.
type Child struct {
	mu sync.Mutex

	// PID identifies the traced process for /proc/$pid/* reads.
	PID int

	trigger    string
	hasTrigger bool
}

// NewChild returns a descriptor for pid with no delayed-translation
// trigger armed.
func NewChild(pid int) *Child {
	return &Child{PID: pid}
}

// NewChildWithTrigger returns a descriptor for pid whose translations are
// delayed until trigger is named (see isDelayed).
func NewChildWithTrigger(pid int, trigger string) *Child {
	return &Child{PID: pid, trigger: trigger, hasTrigger: true}
}

// SetTrigger arms (or re-arms) the delayed-translation trigger. The
// supervisor does not call it: it arms a child's trigger at creation
// through NewChildWithTrigger.
func (c *Child) SetTrigger(trigger string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trigger = trigger
	c.hasTrigger = true
}

// Trigger reports the currently armed trigger path, if any.
func (c *Child) Trigger() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trigger, c.hasTrigger
}

// isDelayed reports whether fakePath's translation must be suppressed.
// It returns true iff a trigger is armed and differs from fakePath; if it
// equals fakePath, the trigger is cleared (exactly once) and false is
// returned, so this call and every later one translate normally.
func (c *Child) isDelayed(fakePath string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasTrigger {
		return false
	}
	if c.trigger == fakePath {
		c.hasTrigger = false
		c.trigger = ""
		return false
	}
	return true
}
