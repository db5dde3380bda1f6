// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ratectl provides the pluggable per-station transmit rate
// selection hook the egress pipeline consults before handing a frame to
// MAC-LOW. The original design hard-codes a single default rate
// (WLAN_MAC_RATE_QPSK34) per newly associated station and never adapts
// it; this keeps that behavior as the default Policy while allowing a
// more elaborate policy (success-ratio based, e.g.) to be substituted.
package ratectl

import "github.com/usbarmory/wlan-ap/internal/assoc"

// Policy selects a transmit rate and records the outcome of a prior
// transmission for a station.
type Policy interface {
	// Rate returns the rate to use for the next transmission to s.
	Rate(s *assoc.Station) uint8
	// Report records the outcome of a transmission attempt, so an
	// adaptive policy can adjust its selection.
	Report(s *assoc.Station, success bool, retries uint8)
}

// Static always returns the station's currently stored TXRate, touching
// only its counters on Report — the original design's behavior.
type Static struct{}

// Rate returns s.TXRate unchanged.
func (Static) Rate(s *assoc.Station) uint8 {
	return s.TXRate
}

// Report updates cumulative TX counters without altering the rate.
func (Static) Report(s *assoc.Station, success bool, retries uint8) {
	s.TXTotal++
	if success {
		s.TXSuccess++
	}
}
