// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ethbridge implements the Ethernet side of the data-plane bridge:
// reading/writing Ethernet II frames from a host network interface and
// de/encapsulating them against the 802.11 wireless link. The NIC
// abstraction and its RxHandler callback mirror soc/nxp/enet's ENET
// driver; the TAP backend is grounded on a raw TUNSETIFF Linux ioctl
// implementation from the retrieval pack.
package ethbridge

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// NIC is the host-side network interface this bridge reads Ethernet
// frames from and writes them to. Start must only be called once; it
// blocks, invoking the handler passed to it for every frame read, until the NIC is
// closed or the reader returns an error.
type NIC interface {
	// MAC returns the interface's hardware address.
	MAC() net.HardwareAddr
	// Start begins the receive loop, invoking handler for each frame
	// read until the NIC is closed.
	Start(handler func([]byte)) error
	// Transmit writes a complete Ethernet II frame to the interface.
	Transmit(frame []byte) error
	// Close releases the underlying descriptor.
	Close() error
}

// DecodeEthernet parses an Ethernet II frame into its header fields and
// payload, using gopacket's layer decoder.
func DecodeEthernet(frame []byte) (dst, src net.HardwareAddr, ethertype layers.EthernetType, payload []byte, ok bool) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})
	eth, found := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !found {
		return nil, nil, 0, nil, false
	}
	return eth.DstMAC, eth.SrcMAC, eth.EthernetType, eth.Payload, true
}

// EncodeEthernet serializes an Ethernet II frame carrying payload between
// src and dst.
func EncodeEthernet(dst, src net.HardwareAddr, ethertype layers.EthernetType, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		DstMAC:       dst,
		SrcMAC:       src,
		EthernetType: ethertype,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
