// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dot11

import (
	"encoding/binary"
	"net"
)

// Open-system authentication algorithm number and transaction sequence
// numbers, IEEE 802.11-2012 8.4.1.1/8.4.1.2.
const (
	AuthAlgoOpenSystem = 0
	AuthSeqRequest     = 1
	AuthSeqResponse    = 2
)

// Status codes, IEEE 802.11-2012 8.4.1.9 (subset this design returns).
const (
	StatusSuccess              = 0
	StatusRejectChallengeFail  = 15
	StatusUnspecifiedFailure   = 1
)

// Deauthentication/disassociation reason codes, IEEE 802.11-2012 8.4.1.7
// (subset this design emits).
const (
	ReasonInactivity        = 4
	ReasonNonAssociatedSTA  = 7
)

// Broadcast is the all-ones MAC address.
var Broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// BeaconInterval is the TU-granular beacon interval advertised in beacon
// and probe response frames.
const BeaconInterval = 100 // TU (~102.4ms), matches BEACON_INTERVAL_MS

// BuildBeaconProbe builds a beacon or probe response frame: fixed
// timestamp/beacon-interval/capabilities, then SSID, supported rates, DS
// parameter set elements. subtype must be SubtypeBeacon or
// SubtypeProbeResp. The timestamp field is left zero; the egress pipeline
// fills it in-place via FlagFillTimestamp the same way the original design
// defers it to MAC-LOW.
func BuildBeaconProbe(subtype uint8, dst, src, bssid net.HardwareAddr, seq uint16, ssid string, channel uint8, basicRates []uint8) []byte {
	buf := make([]byte, HeaderLen, HeaderLen+64)
	h := NewHeader(subtype, dst, src, bssid, seq)
	h.Marshal(buf)

	buf = append(buf, make([]byte, 8)...)                   // timestamp, filled by egress
	buf = binary.LittleEndian.AppendUint16(buf, BeaconInterval)
	buf = binary.LittleEndian.AppendUint16(buf, CapESS)

	buf = AppendElement(buf, TagSSID, []byte(ssid))
	buf = AppendElement(buf, TagSupportedRates, basicRates)
	buf = AppendElement(buf, TagDSParams, []byte{channel})

	return buf
}

// BuildAuth builds an open-system authentication frame at the given
// transaction sequence and status.
func BuildAuth(dst, src, bssid net.HardwareAddr, seq uint16, authSeq uint16, status uint16) []byte {
	buf := make([]byte, HeaderLen, HeaderLen+6)
	h := NewHeader(SubtypeAuth, dst, src, bssid, seq)
	h.Marshal(buf)

	buf = binary.LittleEndian.AppendUint16(buf, AuthAlgoOpenSystem)
	buf = binary.LittleEndian.AppendUint16(buf, authSeq)
	buf = binary.LittleEndian.AppendUint16(buf, status)

	return buf
}

// BuildAssocResp builds an association or reassociation response frame
// carrying status and aid. Per the original design, aid is transmitted
// with its top two bits set (0xC000 | aid), IEEE 802.11-2012 8.4.1.8.
func BuildAssocResp(subtype uint8, dst, src, bssid net.HardwareAddr, seq uint16, status uint16, aid uint16, basicRates []uint8) []byte {
	buf := make([]byte, HeaderLen, HeaderLen+16)
	h := NewHeader(subtype, dst, src, bssid, seq)
	h.Marshal(buf)

	buf = binary.LittleEndian.AppendUint16(buf, CapESS)
	buf = binary.LittleEndian.AppendUint16(buf, status)
	buf = binary.LittleEndian.AppendUint16(buf, 0xC000|aid)

	buf = AppendElement(buf, TagSupportedRates, basicRates)

	return buf
}

// BuildDeauth builds a deauthentication frame carrying reason.
func BuildDeauth(dst, src, bssid net.HardwareAddr, seq uint16, reason uint16) []byte {
	buf := make([]byte, HeaderLen, HeaderLen+2)
	h := NewHeader(SubtypeDeauth, dst, src, bssid, seq)
	h.Marshal(buf)

	buf = binary.LittleEndian.AppendUint16(buf, reason)

	return buf
}

// BuildDisassoc builds a disassociation frame carrying reason.
func BuildDisassoc(dst, src, bssid net.HardwareAddr, seq uint16, reason uint16) []byte {
	buf := make([]byte, HeaderLen, HeaderLen+2)
	h := NewHeader(SubtypeDisassoc, dst, src, bssid, seq)
	h.Marshal(buf)

	buf = binary.LittleEndian.AppendUint16(buf, reason)

	return buf
}

// ParseAuth decodes the fixed body of an authentication frame: algorithm,
// transaction sequence, status.
func ParseAuth(body []byte) (algo, txSeq, status uint16, ok bool) {
	if len(body) < 6 {
		return 0, 0, 0, false
	}
	return binary.LittleEndian.Uint16(body[0:2]),
		binary.LittleEndian.Uint16(body[2:4]),
		binary.LittleEndian.Uint16(body[4:6]),
		true
}

// ParseAssocReq decodes an association request body: capabilities, listen
// interval, and tagged elements (SSID, supported rates, ...).
func ParseAssocReq(body []byte) (capabilities, listenInterval uint16, elements []Element, ok bool) {
	if len(body) < 4 {
		return 0, 0, nil, false
	}
	capabilities = binary.LittleEndian.Uint16(body[0:2])
	listenInterval = binary.LittleEndian.Uint16(body[2:4])
	elements = ParseElements(body[4:])
	return capabilities, listenInterval, elements, true
}

// ParseReassocReq decodes a reassociation request body: capabilities,
// listen interval, current AP address, and tagged elements.
func ParseReassocReq(body []byte) (capabilities, listenInterval uint16, currentAP net.HardwareAddr, elements []Element, ok bool) {
	if len(body) < 10 {
		return 0, 0, nil, nil, false
	}
	capabilities = binary.LittleEndian.Uint16(body[0:2])
	listenInterval = binary.LittleEndian.Uint16(body[2:4])
	currentAP = net.HardwareAddr(append([]byte(nil), body[4:10]...))
	elements = ParseElements(body[10:])
	return capabilities, listenInterval, currentAP, elements, true
}

// ParseProbeReq decodes a probe request body: tagged elements only
// (SSID, supported rates). An empty SSID element means a wildcard probe.
func ParseProbeReq(body []byte) []Element {
	return ParseElements(body)
}
