// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ethbridge

import (
	"net"
	"sync"
)

// Loopback is an in-process NIC for tests: Transmit loops frames back to
// its own handler (or, when Peer is set, delivers to the peer's handler
// instead, modeling a point-to-point link between two bridges).
type Loopback struct {
	mac  net.HardwareAddr
	Peer *Loopback

	mu      sync.Mutex
	handler func([]byte)
	done    chan struct{}
}

// NewLoopback returns a Loopback NIC with the given hardware address.
func NewLoopback(mac net.HardwareAddr) *Loopback {
	return &Loopback{mac: mac, done: make(chan struct{})}
}

// MAC returns the configured hardware address.
func (l *Loopback) MAC() net.HardwareAddr { return l.mac }

// Start registers handler as the frame sink until the NIC is closed.
func (l *Loopback) Start(handler func([]byte)) error {
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
	<-l.done
	return nil
}

// Transmit delivers frame to the peer's handler, or this NIC's own handler
// if no peer is set.
func (l *Loopback) Transmit(frame []byte) error {
	target := l
	if l.Peer != nil {
		target = l.Peer
	}

	target.mu.Lock()
	h := target.handler
	target.mu.Unlock()

	if h != nil {
		cp := make([]byte, len(frame))
		copy(cp, frame)
		h(cp)
	}
	return nil
}

// Close releases any blocked Start call.
func (l *Loopback) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}
