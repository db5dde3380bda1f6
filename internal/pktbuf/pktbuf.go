// Packet buffer arbiter for the MAC-HIGH / MAC-LOW shared memory protocol
// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pktbuf implements the shared packet-buffer arena and try-lock
// arbiter used to hand off 802.11 frames between MAC-HIGH and MAC-LOW.
//
// The arena is a flat byte slice carved into fixed-size slots (4096 bytes),
// one arena for TX and one for RX, each slot guarded by its own mutex
// addressed by a flat id space: TX slot n -> id n, RX slot n -> id NumTX+n.
// The lock is try-only, matching the hardware mutex peripheral the original
// design addresses: MAC-HIGH must never block waiting for a slot MAC-LOW is
// actively using.
package pktbuf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// SlotSize is the fixed size, in bytes, of every TX and RX packet slot.
const SlotSize = 4096

// PHYHeaderPad is the PHY pre-header padding region between frame_info and
// the 802.11 frame bytes.
const PHYHeaderPad = 8

// FrameInfoSize is the encoded size of a FrameInfo header.
const FrameInfoSize = 16

// MaxFrameSize is the largest 802.11 frame a slot can carry.
const MaxFrameSize = SlotSize - FrameInfoSize - PHYHeaderPad

// Owner identifies which CPU currently holds a slot's mutex.
type Owner int

const (
	// OwnerNone marks a slot as unlocked.
	OwnerNone Owner = iota
	// OwnerMACHigh is the upper-MAC application CPU.
	OwnerMACHigh
	// OwnerMACLow is the PHY/timing CPU.
	OwnerMACLow
)

// Slot state values, matching tx_frame_info.state / rx_frame_info.state.
const (
	StateEmpty      = 0
	StateTXPending  = 1
	StateReady      = 2
	StateRXPending  = 1
	StateRXFCSGood  = 2
)

// Verbose TX completion codes (tx_frame_info.state_verbose).
const (
	VerboseSuccess = 0
	VerboseFailure = 1
)

// TX flag bits (tx_frame_info.flags).
const (
	FlagReqTO         = 0x01
	FlagFillTimestamp = 0x02
	FlagFillDuration  = 0x04
)

var (
	// ErrInvalidIndex is returned when a slot index is out of range for
	// its class.
	ErrInvalidIndex = errors.New("pktbuf: invalid slot index")
	// ErrAlreadyLocked is returned by LockTX/LockRX when the slot is
	// currently held.
	ErrAlreadyLocked = errors.New("pktbuf: slot already locked")
	// ErrNotOwner is returned by Unlock when the caller does not hold the
	// slot's mutex.
	ErrNotOwner = errors.New("pktbuf: unlock by non-owner")
)

// FrameInfo is the leading header of every packet slot, encoded at offset 0.
// It mirrors tx_frame_info / rx_frame_info from the original design; TX and
// RX slots share the same wire layout so the egress and ingress paths can
// use one codec, with RSSI/AID reserved fields meaningful only on their
// respective side.
type FrameInfo struct {
	State        uint8
	Rate         uint8
	Length       uint16
	Flags        uint8
	RetryCount   uint8
	RetryMax     uint8
	StateVerbose uint8
	AID          uint16
	RSSI         uint16
	_            uint32
}

// Marshal encodes f into the leading FrameInfoSize bytes of buf.
func (f *FrameInfo) Marshal(buf []byte) {
	_ = buf[FrameInfoSize-1]
	buf[0] = f.State
	buf[1] = f.Rate
	binary.LittleEndian.PutUint16(buf[2:], f.Length)
	buf[4] = f.Flags
	buf[5] = f.RetryCount
	buf[6] = f.RetryMax
	buf[7] = f.StateVerbose
	binary.LittleEndian.PutUint16(buf[8:], f.AID)
	binary.LittleEndian.PutUint16(buf[10:], f.RSSI)
}

// UnmarshalFrameInfo decodes the leading FrameInfoSize bytes of buf.
func UnmarshalFrameInfo(buf []byte) FrameInfo {
	_ = buf[FrameInfoSize-1]
	return FrameInfo{
		State:        buf[0],
		Rate:         buf[1],
		Length:       binary.LittleEndian.Uint16(buf[2:]),
		Flags:        buf[4],
		RetryCount:   buf[5],
		RetryMax:     buf[6],
		StateVerbose: buf[7],
		AID:          binary.LittleEndian.Uint16(buf[8:]),
		RSSI:         binary.LittleEndian.Uint16(buf[10:]),
	}
}

// mutex is a try-only lock with an owner tag, standing in for the hardware
// mutex peripheral addressed by the original design's flat id space.
type mutex struct {
	sync.Mutex
	owner atomic.Int32
}

func (m *mutex) tryLock(by Owner) bool {
	if !m.TryLock() {
		return false
	}
	m.owner.Store(int32(by))
	return true
}

func (m *mutex) unlock(by Owner) error {
	if Owner(m.owner.Load()) != by {
		return ErrNotOwner
	}
	m.owner.Store(int32(OwnerNone))
	m.Unlock()
	return nil
}

func (m *mutex) status() (locked bool, owner Owner) {
	o := Owner(m.owner.Load())
	return o != OwnerNone, o
}

// Arbiter owns the TX and RX packet-buffer arenas and their per-slot
// mutexes.
type Arbiter struct {
	numTX, numRX int

	tx    []byte
	rx    []byte
	txMtx []mutex
	rxMtx []mutex
}

// NewArbiter allocates TX and RX arenas of numTX and numRX slots
// respectively.
func NewArbiter(numTX, numRX int) *Arbiter {
	a := &Arbiter{
		numTX: numTX,
		numRX: numRX,
		tx:    make([]byte, numTX*SlotSize),
		rx:    make([]byte, numRX*SlotSize),
		txMtx: make([]mutex, numTX),
		rxMtx: make([]mutex, numRX),
	}
	return a
}

// NumTX returns the number of TX slots.
func (a *Arbiter) NumTX() int { return a.numTX }

// NumRX returns the number of RX slots.
func (a *Arbiter) NumRX() int { return a.numRX }

// TXSlot returns the raw bytes of TX slot n. The caller must hold the slot's
// lock.
func (a *Arbiter) TXSlot(n int) ([]byte, error) {
	if n < 0 || n >= a.numTX {
		return nil, fmt.Errorf("%w: tx %d", ErrInvalidIndex, n)
	}
	return a.tx[n*SlotSize : (n+1)*SlotSize], nil
}

// RXSlot returns the raw bytes of RX slot n. The caller must hold the slot's
// lock.
func (a *Arbiter) RXSlot(n int) ([]byte, error) {
	if n < 0 || n >= a.numRX {
		return nil, fmt.Errorf("%w: rx %d", ErrInvalidIndex, n)
	}
	return a.rx[n*SlotSize : (n+1)*SlotSize], nil
}

// LockTX attempts to acquire TX slot n on behalf of owner by. It never
// blocks.
func (a *Arbiter) LockTX(n int, by Owner) error {
	if n < 0 || n >= a.numTX {
		return fmt.Errorf("%w: tx %d", ErrInvalidIndex, n)
	}
	if !a.txMtx[n].tryLock(by) {
		return fmt.Errorf("%w: tx %d", ErrAlreadyLocked, n)
	}
	return nil
}

// UnlockTX releases TX slot n, which must currently be held by by.
func (a *Arbiter) UnlockTX(n int, by Owner) error {
	if n < 0 || n >= a.numTX {
		return fmt.Errorf("%w: tx %d", ErrInvalidIndex, n)
	}
	return a.txMtx[n].unlock(by)
}

// StatusTX reports the lock state of TX slot n, for diagnostics only.
func (a *Arbiter) StatusTX(n int) (locked bool, owner Owner, err error) {
	if n < 0 || n >= a.numTX {
		return false, OwnerNone, fmt.Errorf("%w: tx %d", ErrInvalidIndex, n)
	}
	locked, owner = a.txMtx[n].status()
	return
}

// LockRX attempts to acquire RX slot n on behalf of owner by. It never
// blocks.
func (a *Arbiter) LockRX(n int, by Owner) error {
	if n < 0 || n >= a.numRX {
		return fmt.Errorf("%w: rx %d", ErrInvalidIndex, n)
	}
	if !a.rxMtx[n].tryLock(by) {
		return fmt.Errorf("%w: rx %d", ErrAlreadyLocked, n)
	}
	return nil
}

// UnlockRX releases RX slot n, which must currently be held by by.
func (a *Arbiter) UnlockRX(n int, by Owner) error {
	if n < 0 || n >= a.numRX {
		return fmt.Errorf("%w: rx %d", ErrInvalidIndex, n)
	}
	return a.rxMtx[n].unlock(by)
}

// StatusRX reports the lock state of RX slot n, for diagnostics only.
func (a *Arbiter) StatusRX(n int) (locked bool, owner Owner, err error) {
	if n < 0 || n >= a.numRX {
		return false, OwnerNone, fmt.Errorf("%w: rx %d", ErrInvalidIndex, n)
	}
	locked, owner = a.rxMtx[n].status()
	return
}

// MutexID returns the flat mutex id space value for a TX or RX slot, as
// described in the external interface: TX slot n -> id n, RX slot n -> id
// NumTX+n.
func (a *Arbiter) MutexID(tx bool, n int) int {
	if tx {
		return n
	}
	return a.numTX + n
}
