// IPC message framing for the MAC-HIGH / MAC-LOW mailbox protocol
// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ipc implements the framed message protocol MAC-HIGH and MAC-LOW
// exchange over a blocking, bounded, word-oriented mailbox, modeled after
// the VideoCore mailbox protocol in soc/bcm2835/mailbox.go: a fixed header
// word followed by a bounded run of payload words, with a delimiter nibble
// used to detect and resynchronize after framing corruption.
package ipc

import "fmt"

// Delim is the fixed delimiter occupying the upper nibble of every msg_id.
const Delim = 0xF000

// MaxPayloadWords is the largest payload a single message may carry.
const MaxPayloadWords = 255

// Group identifies the message group encoded in msg_id bits [11:8].
type Group uint8

// Message groups.
const (
	GroupCMD       Group = 0
	GroupMACAddr   Group = 1
	GroupCPUStatus Group = 2
	GroupParam     Group = 3
)

// CMD group subtypes.
const (
	CmdRXMPDUReady  uint8 = 0
	CmdTXMPDUReady  uint8 = 2
	CmdTXMPDUAccept uint8 = 3
	CmdTXMPDUDone   uint8 = 4
)

// PARAM group subtypes.
const (
	ParamSetChannel uint8 = 0
)

// CPU_STATUS payload bits (word 0).
const (
	CPUStatusInitialized uint32 = 0x00000001
	CPUStatusException   uint32 = 0x80000000
)

// MsgID builds a 16-bit message id from a group and subtype, carrying the
// fixed delimiter.
func MsgID(group Group, subtype uint8) uint16 {
	return Delim | (uint16(group)<<8)&0x0F00 | uint16(subtype)
}

// GroupOf extracts the group nibble from a msg_id.
func GroupOf(msgID uint16) Group {
	return Group((msgID & 0x0F00) >> 8)
}

// SubtypeOf extracts the subtype byte from a msg_id.
func SubtypeOf(msgID uint16) uint8 {
	return uint8(msgID & 0x00FF)
}

// HasDelim reports whether msgID carries the fixed delimiter nibble.
func HasDelim(msgID uint16) bool {
	return msgID&0xF000 == Delim
}

// Message is one IPC transaction: a header (msg_id, arg0, payload count)
// followed by that many 32-bit payload words.
type Message struct {
	MsgID   uint16
	Arg0    uint8
	Payload []uint32
}

// Validate checks the framing invariants required before a Message may be
// written to the mailbox: the delimiter must be present and the payload
// must not exceed MaxPayloadWords.
func (m *Message) Validate() error {
	if !HasDelim(m.MsgID) {
		return fmt.Errorf("%w: msg_id %#04x missing delimiter", ErrFraming, m.MsgID)
	}
	if len(m.Payload) > MaxPayloadWords {
		return fmt.Errorf("%w: %d payload words exceeds max %d", ErrFraming, len(m.Payload), MaxPayloadWords)
	}
	return nil
}

// header packs the msg_id, payload word count, and arg0 into a single
// mailbox word: msg_id occupies the low 16 bits, num_payload_words the next
// 8, arg0 the top 8.
func (m *Message) header() uint32 {
	return uint32(m.MsgID) | uint32(len(m.Payload))<<16 | uint32(m.Arg0)<<24
}

func headerToMessage(word uint32) (msgID uint16, numWords uint8, arg0 uint8) {
	msgID = uint16(word & 0xFFFF)
	numWords = uint8((word >> 16) & 0xFF)
	arg0 = uint8((word >> 24) & 0xFF)
	return
}
