// Association table for the MAC-HIGH management plane
// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package assoc implements the AP's station association table: a densely
// packed array of station records keyed by MAC address, with a stable AID
// space and O(1) compacting removal, ported from wlan_mac_ap.c's
// associations[]/next_free_assoc_index management.
package assoc

import (
	"errors"
	"net"
	"time"
)

// MaxAssociations bounds the number of simultaneously associated stations.
const MaxAssociations = 127

// broadcast marks an unoccupied station slot, matching the original design's
// use of the all-ones address as the free-slot sentinel.
var broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// DefaultTXRate is the rate newly admitted stations start at; rate
// adaptation may change this afterwards via the pluggable rate-selection
// hook.
const DefaultTXRate = 4 // WLAN_MAC_RATE_QPSK34

// Station is one association table entry.
type Station struct {
	Addr net.HardwareAddr
	// AID is the association identifier, 1..MaxAssociations, preserved
	// across the slot's lifetime once assigned at boot.
	AID uint16
	// Seq is the last-received 12-bit sequence number.
	Seq uint16
	// RxTimestamp is the time of the last received frame from this
	// station.
	RxTimestamp time.Time
	// TXRate is the currently selected transmit rate.
	TXRate uint8
	// TXTotal and TXSuccess are cumulative transmission counters.
	TXTotal   uint32
	TXSuccess uint32
}

func (s *Station) isFree() bool {
	return s.Addr.String() == broadcast.String()
}

// ErrTableFull names the condition in which admission cannot find any
// slot. Admit does not return it: Admit reports that case by returning a
// nil *Station.
var ErrTableFull = errors.New("assoc: table full")

// Table is the densely packed station record array plus one trailing swap
// slot used by compacting removal.
type Table struct {
	entries       [MaxAssociations + 1]Station
	nextFreeIndex int
}

// NewTable initializes an empty table: every slot is zeroed, pre-assigned
// AID = slot_index+1 per 802.11-2007 7.3.1.8, and marked free (broadcast
// address).
func NewTable() *Table {
	t := &Table{}
	for i := range t.entries {
		t.entries[i] = Station{
			Addr: append(net.HardwareAddr(nil), broadcast...),
			AID:  uint16(i + 1),
		}
	}
	return t
}

// NextFreeIndex returns the current free-slot cursor, i.e. the count of
// occupied entries.
func (t *Table) NextFreeIndex() int {
	return t.nextFreeIndex
}

// Occupied returns a snapshot of the currently occupied entries, in table
// order.
func (t *Table) Occupied() []Station {
	out := make([]Station, t.nextFreeIndex)
	copy(out, t.entries[:t.nextFreeIndex])
	return out
}

// Find returns the station record for addr and true if it is currently
// associated.
func (t *Table) Find(addr net.HardwareAddr) (*Station, bool) {
	for i := 0; i < t.nextFreeIndex; i++ {
		if sameAddr(t.entries[i].Addr, addr) {
			return &t.entries[i], true
		}
	}
	return nil, false
}

// Admit processes an association or reassociation request from addr. If
// addr is already associated it is reused unchanged (reassociation keeps
// the same AID); otherwise the first free slot is claimed, its AID
// preserved from initialization. The cursor is bounded to
// MaxAssociations-2 so the trailing two entries remain available as swap
// scratch and request-time scan overrun guard, matching the original
// design's admission loop bound.
func (t *Table) Admit(addr net.HardwareAddr, now time.Time) (*Station, bool /* isNew */) {
	for i := 0; i <= t.nextFreeIndex; i++ {
		if sameAddr(t.entries[i].Addr, addr) {
			s := &t.entries[i]
			s.RxTimestamp = now
			return s, false
		}
		if t.entries[i].isFree() {
			s := &t.entries[i]
			s.Addr = append(net.HardwareAddr(nil), addr...)
			s.Seq = 0
			s.RxTimestamp = now
			s.TXRate = DefaultTXRate

			if t.nextFreeIndex < MaxAssociations-2 {
				t.nextFreeIndex++
			}

			return s, true
		}
	}

	return nil, false
}

// Remove locates addr and, if found, removes it via swap-compaction: the
// entry is saved into the trailing scratch slot, later entries shift down
// by one, and the scratch copy — preserving its pre-assigned AID — is
// written back into the entry that becomes the new free slot.
func (t *Table) Remove(addr net.HardwareAddr) bool {
	idx := -1
	for i := 0; i < t.nextFreeIndex; i++ {
		if sameAddr(t.entries[i].Addr, addr) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	t.removeAt(idx)
	return true
}

func (t *Table) removeAt(idx int) {
	if t.nextFreeIndex > 0 {
		t.nextFreeIndex--
	}

	scratch := &t.entries[MaxAssociations]
	*scratch = t.entries[idx]

	copy(t.entries[idx:t.nextFreeIndex], t.entries[idx+1:t.nextFreeIndex+1])

	t.entries[t.nextFreeIndex] = *scratch
	t.entries[t.nextFreeIndex].Addr = append(net.HardwareAddr(nil), broadcast...)
	t.entries[t.nextFreeIndex].Seq = 0
}

// UpdateRX refreshes last_rx_timestamp for addr and checks the 12-bit
// sequence number for a duplicate data frame. It returns (station, found,
// duplicate). A duplicate is dropped by the caller without further side
// effects.
func (t *Table) UpdateRX(addr net.HardwareAddr, seq uint16, now time.Time) (s *Station, found bool, duplicate bool) {
	s, found = t.Find(addr)
	if !found {
		return nil, false, false
	}

	s.RxTimestamp = now

	if s.Seq != 0 && s.Seq == seq {
		return s, true, true
	}

	s.Seq = seq
	return s, true, false
}

// Inactive returns the addresses of stations whose last RX timestamp is
// older than threshold relative to now.
func (t *Table) Inactive(now time.Time, threshold time.Duration) []net.HardwareAddr {
	var out []net.HardwareAddr
	for i := 0; i < t.nextFreeIndex; i++ {
		if now.Sub(t.entries[i].RxTimestamp) > threshold {
			out = append(out, append(net.HardwareAddr(nil), t.entries[i].Addr...))
		}
	}
	return out
}

func sameAddr(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
