// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ethbridge

import (
	"net"
	"testing"
	"time"

	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"
)

func mac(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	a, err := net.ParseMAC(s)
	require.NoError(t, err)
	return a
}

func TestEncodeDecodeEthernetRoundTrip(t *testing.T) {
	src := mac(t, "02:00:00:00:00:01")
	dst := mac(t, "02:00:00:00:00:02")

	frame, err := EncodeEthernet(dst, src, layers.EthernetTypeIPv4, []byte("payload"))
	require.NoError(t, err)

	gotDst, gotSrc, ethertype, payload, ok := DecodeEthernet(frame)
	require.True(t, ok)
	require.Equal(t, dst.String(), gotDst.String())
	require.Equal(t, src.String(), gotSrc.String())
	require.Equal(t, layers.EthernetTypeIPv4, ethertype)
	require.Equal(t, []byte("payload"), payload)
}

func TestLoopbackDeliversToPeer(t *testing.T) {
	a := NewLoopback(mac(t, "02:00:00:00:00:01"))
	b := NewLoopback(mac(t, "02:00:00:00:00:02"))
	a.Peer = b
	b.Peer = a

	received := make(chan []byte, 1)
	go b.Start(func(frame []byte) { received <- frame })
	go a.Start(func([]byte) {})
	defer a.Close()
	defer b.Close()

	time.Sleep(10 * time.Millisecond)

	frame, err := EncodeEthernet(b.MAC(), a.MAC(), layers.EthernetTypeIPv4, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, a.Transmit(frame))

	select {
	case got := <-received:
		_, _, _, payload, ok := DecodeEthernet(got)
		require.True(t, ok)
		require.Equal(t, []byte("hello"), payload)
	case <-time.After(time.Second):
		t.Fatal("peer never received frame")
	}
}

func TestLoopbackWithoutPeerEchoesToSelf(t *testing.T) {
	l := NewLoopback(mac(t, "02:00:00:00:00:01"))

	received := make(chan []byte, 1)
	go l.Start(func(frame []byte) { received <- frame })
	defer l.Close()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, l.Transmit([]byte("echo")))

	select {
	case got := <-received:
		require.Equal(t, []byte("echo"), got)
	case <-time.After(time.Second):
		t.Fatal("self-loopback never echoed")
	}
}
