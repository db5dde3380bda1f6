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

// BuildDataToDS builds a data frame traveling from the AP to an associated
// station (FromDS set, addr1=station, addr2=bssid, addr3=original Ethernet
// source). The body is the two-byte ethertype followed by the Ethernet
// payload; this access point does not carry 802.2 LLC/SNAP, so ethertype
// recovery on decapsulation reads it back from the same two bytes.
func BuildDataToDS(station, bssid, ethSrc net.HardwareAddr, seq uint16, ethertype uint16, payload []byte) []byte {
	buf := make([]byte, HeaderLen, HeaderLen+2+len(payload))
	h := NewHeader(TypeData, station, bssid, ethSrc, seq)
	h.FrameControl2 = FlagFromDS
	h.Marshal(buf)

	buf = binary.LittleEndian.AppendUint16(buf, ethertype)
	buf = append(buf, payload...)
	return buf
}

// DecapsulateData extracts the ethertype and payload from a data frame
// body built by BuildDataToDS or an equivalent station-originated frame.
func DecapsulateData(body []byte) (ethertype uint16, payload []byte, ok bool) {
	if len(body) < 2 {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint16(body[0:2]), body[2:], true
}
