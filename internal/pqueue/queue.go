// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pqueue

// Queue selector, indexing Pool.rings. The design contracts for at least a
// high- and a low-priority ring; QueueHigh drains ahead of QueueLow in the
// egress pipeline.
const (
	QueueHigh = 0
	QueueLow  = 1

	numQueues = 2
)

// Pool owns the free ring and the fixed set of priority rings descriptors
// move between, mirroring queue_free/queue[NUM_QUEUES] in the original
// design.
type Pool struct {
	free  *Ring
	rings [numQueues]*Ring
}

// NewPoolWithQueues allocates a pool of length descriptors sitting in the
// free ring, plus the priority rings, all initially empty.
func NewPoolWithQueues(length int) *Pool {
	p := &Pool{free: NewPool(length)}
	for i := range p.rings {
		p.rings[i] = NewRing()
	}
	return p
}

// Free returns the pool's free ring, for diagnostics and tests.
func (p *Pool) Free() *Ring {
	return p.free
}

// Queue returns priority ring q.
func (p *Pool) Queue(q int) *Ring {
	return p.rings[q]
}

// Checkout detaches up to n descriptors from the head of the free ring and
// returns them as a private ring the caller owns exclusively. If fewer than
// n are free, every remaining free descriptor is returned.
func (p *Pool) Checkout(n int) *Ring {
	out := NewRing()
	for i := 0; i < n; i++ {
		d := p.free.First()
		if d == nil {
			break
		}
		p.free.Remove(d)
		out.InsertEnd(d)
	}
	return out
}

// Checkin moves every descriptor in ring back to the tail of the free ring,
// draining ring in the process.
func (p *Pool) Checkin(ring *Ring) {
	for _, d := range ring.drainAll() {
		p.free.InsertEnd(d)
	}
}

// EnqueueAfterEnd moves every descriptor in ring to the tail of priority
// ring q, in order, draining ring in the process.
func (p *Pool) EnqueueAfterEnd(q int, ring *Ring) {
	for _, d := range ring.drainAll() {
		p.rings[q].InsertEnd(d)
	}
}

// DequeueFromBeginning detaches up to n descriptors from the head of
// priority ring q and returns them as a new private ring, in FIFO order. If
// fewer than n are queued, every queued descriptor is returned.
func (p *Pool) DequeueFromBeginning(q int, n int) *Ring {
	out := NewRing()
	for i := 0; i < n; i++ {
		d := p.rings[q].First()
		if d == nil {
			break
		}
		p.rings[q].Remove(d)
		out.InsertEnd(d)
	}
	return out
}
