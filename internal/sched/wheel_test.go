// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleFiresAfterDelay(t *testing.T) {
	w := NewWheel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	fired := make(chan struct{}, 1)
	_, err := w.Schedule(20*time.Millisecond, func() { fired <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	w := NewWheel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	var fired atomic.Bool
	h, err := w.Schedule(30*time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, err)

	w.Cancel(h)
	time.Sleep(80 * time.Millisecond)
	require.False(t, fired.Load())
}

func TestSelfReschedulingCallback(t *testing.T) {
	w := NewWheel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	var count atomic.Int32
	done := make(chan struct{})

	var tick func()
	tick = func() {
		n := count.Add(1)
		if n >= 3 {
			close(done)
			return
		}
		w.Schedule(5*time.Millisecond, tick)
	}
	_, err := w.Schedule(5*time.Millisecond, tick)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("self-rescheduling callback did not reach target count")
	}
	require.Equal(t, int32(3), count.Load())
}

func TestScheduleFullWheelReturnsError(t *testing.T) {
	w := NewWheel()
	for i := 0; i < NumEvents; i++ {
		_, err := w.Schedule(time.Hour, func() {})
		require.NoError(t, err)
	}

	_, err := w.Schedule(time.Hour, func() {})
	require.ErrorIs(t, err, ErrFull)
}

func TestCancelFreesSlotForReuse(t *testing.T) {
	w := NewWheel()
	handles := make([]int, NumEvents)
	for i := 0; i < NumEvents; i++ {
		h, err := w.Schedule(time.Hour, func() {})
		require.NoError(t, err)
		handles[i] = h
	}

	w.Cancel(handles[0])
	_, err := w.Schedule(time.Hour, func() {})
	require.NoError(t, err, "canceling a slot must free it for reuse")
}

func TestEarliestDeadlineFiresFirst(t *testing.T) {
	w := NewWheel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	var order []int
	done := make(chan struct{})

	w.Schedule(60*time.Millisecond, func() {
		order = append(order, 2)
	})
	w.Schedule(20*time.Millisecond, func() {
		order = append(order, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("earlier deadline never fired")
	}
	time.Sleep(80 * time.Millisecond)

	require.Equal(t, []int{1, 2}, order)
}

func TestSchedulerRunsBothWheels(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	fineFired := make(chan struct{}, 1)
	coarseFired := make(chan struct{}, 1)

	s.Fine.Schedule(10*time.Millisecond, func() { fineFired <- struct{}{} })
	s.Coarse.Schedule(10*time.Millisecond, func() { coarseFired <- struct{}{} })

	for _, ch := range []chan struct{}{fineFired, coarseFired} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("wheel did not fire")
		}
	}
}
