// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pqueue

import "github.com/usbarmory/wlan-ap/internal/pktbuf"

// DefaultPoolLength is the number of descriptors carved out of the pool at
// boot, matching PQUEUE_LEN's role in the original design: every descriptor
// not currently checked out into a priority ring sits in the free ring.
const DefaultPoolLength = 256

// NewPool allocates length descriptors, each backed by its own
// pktbuf.MaxFrameSize buffer, and returns them already linked into a single
// free Ring. This mirrors queue_init's construction of queue_free as one
// doubly-linked walk over a freshly bzero'd buffer arena, done here with a
// Go slice of slices instead of base-address arithmetic over a flat arena.
func NewPool(length int) *Ring {
	free := NewRing()
	for i := 0; i < length; i++ {
		d := &Descriptor{
			Frame: make([]byte, pktbuf.MaxFrameSize),
		}
		free.InsertEnd(d)
	}
	return free
}
