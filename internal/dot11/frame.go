// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dot11 is a pure serializer for the subset of IEEE 802.11
// management and data frames this access point's management plane needs:
// header parsing, tagged-parameter decoding, and builders for beacon,
// probe response, authentication, association response and deauthentication
// frames. It holds no state and performs no I/O, mirroring mac_header_80211
// and the frame builder helpers in wlan_mac_ap.c/wlan_lib.h.
package dot11

import (
	"encoding/binary"
	"errors"
	"net"
)

// HeaderLen is the size of the fixed 802.11 MAC header this design uses
// (no address 4, no QoS control, no HT control).
const HeaderLen = 24

// Frame control byte 1: type/subtype, IEEE 802.11-2012 8.2.4.1.
const (
	TypeMgmt = 0x00
	TypeCtrl = 0x04
	TypeData = 0x08

	TypeMask    = 0x0C
	SubtypeMask = 0xF0
)

// Management subtypes.
const (
	SubtypeAssocReq    = TypeMgmt | 0x00
	SubtypeAssocResp   = TypeMgmt | 0x10
	SubtypeReassocReq  = TypeMgmt | 0x20
	SubtypeReassocResp = TypeMgmt | 0x30
	SubtypeProbeReq    = TypeMgmt | 0x40
	SubtypeProbeResp   = TypeMgmt | 0x50
	SubtypeBeacon      = TypeMgmt | 0x80
	SubtypeDisassoc    = TypeMgmt | 0xA0
	SubtypeAuth        = TypeMgmt | 0xB0
	SubtypeDeauth      = TypeMgmt | 0xC0
	SubtypeAction      = TypeMgmt | 0xD0
)

// Frame control byte 2 flags.
const (
	FlagToDS      = 0x01
	FlagFromDS    = 0x02
	FlagRetry     = 0x08
	FlagPowerMgmt = 0x10
	FlagMoreData  = 0x20
)

// Rate codes (arbitrary internal PHY rate indices, not over-the-air values).
const (
	RateBPSK12  = 1
	RateBPSK34  = 2
	RateQPSK12  = 3
	RateQPSK34  = 4
	Rate16QAM12 = 5
	Rate16QAM34 = 6
	Rate64QAM23 = 7
	Rate64QAM34 = 8
)

// Capability bits.
const (
	CapESS           = 0x0001
	CapIBSS          = 0x0002
	CapPrivacy       = 0x0010
	CapShortPreamble = 0x0020
	CapShortTimeslot = 0x0400
)

// Tagged parameter element IDs.
const (
	TagSSID            = 0x00
	TagSupportedRates  = 0x01
	TagDSParams        = 0x03
	TagExtSupportedRates = 0x32
)

// RateBasic marks a rate as part of the BSS basic rate set.
const RateBasic = 0x80

// ErrShortFrame is returned when a buffer is too small to hold a valid
// header or the element it is being parsed as.
var ErrShortFrame = errors.New("dot11: frame too short")

// Header is the fixed portion of an 802.11 MAC header: frame control,
// duration/ID, three addresses and the sequence control field.
type Header struct {
	FrameControl1 uint8
	FrameControl2 uint8
	DurationID    uint16
	Addr1         net.HardwareAddr
	Addr2         net.HardwareAddr
	Addr3         net.HardwareAddr
	SeqControl    uint16
}

// Type returns the frame's type field (bits 3:2 of FrameControl1).
func (h Header) Type() uint8 { return h.FrameControl1 & TypeMask }

// Subtype returns the full type|subtype byte, directly comparable against
// the Subtype* constants.
func (h Header) Subtype() uint8 { return h.FrameControl1 & (TypeMask | SubtypeMask) }

// SequenceNumber returns the 12-bit sequence number portion of
// SeqControl (fragment number occupies the low 4 bits).
func (h Header) SequenceNumber() uint16 { return h.SeqControl >> 4 }

// ParseHeader decodes the fixed 24-byte header at the start of buf.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, ErrShortFrame
	}
	return Header{
		FrameControl1: buf[0],
		FrameControl2: buf[1],
		DurationID:    binary.LittleEndian.Uint16(buf[2:4]),
		Addr1:         net.HardwareAddr(append([]byte(nil), buf[4:10]...)),
		Addr2:         net.HardwareAddr(append([]byte(nil), buf[10:16]...)),
		Addr3:         net.HardwareAddr(append([]byte(nil), buf[16:22]...)),
		SeqControl:    binary.LittleEndian.Uint16(buf[22:24]),
	}, nil
}

// Marshal encodes h into the first HeaderLen bytes of buf.
func (h Header) Marshal(buf []byte) error {
	if len(buf) < HeaderLen {
		return ErrShortFrame
	}
	buf[0] = h.FrameControl1
	buf[1] = h.FrameControl2
	binary.LittleEndian.PutUint16(buf[2:4], h.DurationID)
	copy(buf[4:10], h.Addr1)
	copy(buf[10:16], h.Addr2)
	copy(buf[16:22], h.Addr3)
	binary.LittleEndian.PutUint16(buf[22:24], h.SeqControl)
	return nil
}

// NewHeader builds a management-frame header addressed receiver/transmitter
// /BSSID the way every builder in this package needs it, with seq packed
// into the high 12 bits of SeqControl (fragment number always 0).
func NewHeader(subtype uint8, addr1, addr2, addr3 net.HardwareAddr, seq uint16) Header {
	return Header{
		FrameControl1: subtype,
		Addr1:         addr1,
		Addr2:         addr2,
		Addr3:         addr3,
		SeqControl:    seq << 4,
	}
}

// Element is one tagged parameter (SSID, supported rates, DS params, ...).
type Element struct {
	ID   uint8
	Data []byte
}

// ParseElements walks a tagged-parameter region (id, length, data)*,
// stopping at the first malformed element.
func ParseElements(buf []byte) []Element {
	var out []Element
	for len(buf) >= 2 {
		id, length := buf[0], int(buf[1])
		if len(buf) < 2+length {
			break
		}
		out = append(out, Element{ID: id, Data: buf[2 : 2+length]})
		buf = buf[2+length:]
	}
	return out
}

// AppendElement appends a tagged parameter to buf and returns the result.
func AppendElement(buf []byte, id uint8, data []byte) []byte {
	buf = append(buf, id, uint8(len(data)))
	return append(buf, data...)
}

// Find returns the first element with the given id, if present.
func Find(elements []Element, id uint8) (Element, bool) {
	for _, e := range elements {
		if e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}
