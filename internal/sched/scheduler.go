// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sched

import "context"

// Scheduler pairs the fine and coarse wheels, matching SCHEDULE_FINE and
// SCHEDULE_COARSE. Coarse carries the periodic management tasks (beacon,
// association timeout scan); Fine is available for short, high-frequency
// deadlines, and nothing in machigh schedules on it.
type Scheduler struct {
	Fine   *Wheel
	Coarse *Wheel
}

// New returns a Scheduler with both wheels disarmed.
func New() *Scheduler {
	return &Scheduler{
		Fine:   NewWheel(),
		Coarse: NewWheel(),
	}
}

// Run starts both wheels and blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	go s.Fine.Run(ctx)
	s.Coarse.Run(ctx)
}
