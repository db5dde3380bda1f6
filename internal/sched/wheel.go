// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sched implements the two independent timer wheels used for
// periodic management-plane work (beacon transmission, association
// timeout scanning) and for shorter-lived one-shot deadlines, ported from
// wlan_mac_util.c's SCHEDULE_FINE/SCHEDULE_COARSE scheduler_callbacks
// arrays. Each wheel auto-arms a single underlying timer to its earliest
// pending deadline and auto-disarms once no event remains, rather than
// the original's periodic hardware interrupt that free-runs whether or
// not anything is due.
package sched

import (
	"context"
	"errors"
	"sync"
	"time"
)

// NumEvents bounds the number of concurrently pending events per wheel,
// matching SCHEDULER_NUM_EVENTS.
const NumEvents = 8

// ErrFull is returned by Schedule when every slot in the wheel is occupied.
var ErrFull = errors.New("sched: scheduler full")

type entry struct {
	inUse    bool
	deadline time.Time
	callback func()
}

// Wheel is a fixed-capacity array of pending callbacks, each associated
// with an absolute deadline, serviced by a single re-armable timer.
type Wheel struct {
	mu      sync.Mutex
	entries [NumEvents]entry
	timer   *time.Timer
}

// NewWheel returns an empty, disarmed wheel.
func NewWheel() *Wheel {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &Wheel{timer: t}
}

// Schedule occupies the first free slot with callback, due after delay, and
// arms the wheel if this is now the earliest pending deadline. It returns a
// handle usable with Cancel.
func (w *Wheel) Schedule(delay time.Duration, callback func()) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.entries {
		if !w.entries[i].inUse {
			w.entries[i] = entry{
				inUse:    true,
				deadline: time.Now().Add(delay),
				callback: callback,
			}
			w.arm()
			return i, nil
		}
	}

	return -1, ErrFull
}

// Cancel frees handle's slot, if still pending.
func (w *Wheel) Cancel(handle int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if handle < 0 || handle >= NumEvents {
		return
	}
	w.entries[handle].inUse = false
	w.arm()
}

// arm resets the underlying timer to the earliest pending deadline, or
// leaves it stopped if nothing is pending. Caller must hold w.mu.
func (w *Wheel) arm() {
	var next time.Time
	pending := false

	for i := range w.entries {
		if w.entries[i].inUse && (!pending || w.entries[i].deadline.Before(next)) {
			next = w.entries[i].deadline
			pending = true
		}
	}

	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	if !pending {
		return
	}

	d := time.Until(next)
	if d < 0 {
		d = 0
	}
	w.timer.Reset(d)
}

// Run services the wheel until ctx is canceled, firing due callbacks as
// they expire and re-arming for the next deadline. It must run in its own
// goroutine.
func (w *Wheel) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.timer.C:
			w.fire()
		}
	}
}

// fire invokes every callback whose deadline has passed. Each slot is freed
// before its callback runs, so a callback that reschedules itself (the
// common case: beacon_transmit and association_timestamp_check both
// re-arm themselves) can reuse its own slot without deadlock.
func (w *Wheel) fire() {
	now := time.Now()
	var due []func()

	w.mu.Lock()
	for i := range w.entries {
		if w.entries[i].inUse && !now.Before(w.entries[i].deadline) {
			due = append(due, w.entries[i].callback)
			w.entries[i].inUse = false
		}
	}
	w.arm()
	w.mu.Unlock()

	for _, cb := range due {
		cb()
	}
}
