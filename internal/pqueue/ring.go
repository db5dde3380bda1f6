// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pqueue

import (
	"container/list"

	"github.com/usbarmory/wlan-ap/internal/assoc"
	"github.com/usbarmory/wlan-ap/internal/pktbuf"
)

// Descriptor is a queue buffer descriptor: a fixed-capacity frame buffer, a
// nullable back-pointer to the associated station, and a mutable FrameInfo
// copy carrying length/flags/retry policy. A descriptor belongs to at most
// one Ring at a time.
type Descriptor struct {
	// Frame is the fixed-capacity buffer backing this descriptor, sized
	// pktbuf.MaxFrameSize.
	Frame []byte
	// Station is the destination station, nil for broadcast/multicast
	// frames.
	Station *assoc.Station
	// Info carries length, flags, and retry policy for this frame.
	Info pktbuf.FrameInfo

	ring *Ring
	elem *list.Element
}

// Ring is a doubly-linked list of descriptors, matching pqueue_ring from the
// original design (cached first/last/length), implemented over
// container/list the same way the teacher's DMA allocator keeps its
// free/used block lists (dma/region.go).
type Ring struct {
	l *list.List
}

// NewRing returns an empty ring.
func NewRing() *Ring {
	return &Ring{l: list.New()}
}

// Length returns the number of descriptors currently in the ring.
func (r *Ring) Length() int {
	return r.l.Len()
}

// First returns the descriptor at the head of the ring, or nil if empty.
func (r *Ring) First() *Descriptor {
	if e := r.l.Front(); e != nil {
		return e.Value.(*Descriptor)
	}
	return nil
}

// Last returns the descriptor at the tail of the ring, or nil if empty.
func (r *Ring) Last() *Descriptor {
	if e := r.l.Back(); e != nil {
		return e.Value.(*Descriptor)
	}
	return nil
}

// InsertBeginning inserts d at the head of the ring, first detaching it
// from any ring that currently holds it.
func (r *Ring) InsertBeginning(d *Descriptor) {
	r.Remove(d)
	d.ring = r
	d.elem = r.l.PushFront(d)
}

// InsertEnd inserts d at the tail of the ring, first detaching it from any
// ring that currently holds it.
func (r *Ring) InsertEnd(d *Descriptor) {
	r.Remove(d)
	d.ring = r
	d.elem = r.l.PushBack(d)
}

// InsertBefore inserts dNew immediately before mark, which must currently be
// in this ring, first detaching dNew from any ring that currently holds it.
func (r *Ring) InsertBefore(mark, dNew *Descriptor) {
	r.Remove(dNew)
	dNew.ring = r
	dNew.elem = r.l.InsertBefore(dNew, mark.elem)
}

// InsertAfter inserts dNew immediately after mark, which must currently be
// in this ring, first detaching dNew from any ring that currently holds it.
func (r *Ring) InsertAfter(mark, dNew *Descriptor) {
	r.Remove(dNew)
	dNew.ring = r
	dNew.elem = r.l.InsertAfter(dNew, mark.elem)
}

// Remove detaches d from whichever ring currently holds it.
func (r *Ring) Remove(d *Descriptor) {
	if d.ring == nil {
		return
	}
	d.ring.l.Remove(d.elem)
	d.ring = nil
	d.elem = nil
}

// drainAll removes and returns every descriptor currently in the ring, in
// order from first to last.
func (r *Ring) drainAll() []*Descriptor {
	out := make([]*Descriptor, 0, r.l.Len())
	for e := r.l.Front(); e != nil; {
		next := e.Next()
		d := e.Value.(*Descriptor)
		r.Remove(d)
		out = append(out, d)
		e = next
	}
	return out
}
