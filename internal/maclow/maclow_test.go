// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package maclow

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usbarmory/wlan-ap/internal/ipc"
	"github.com/usbarmory/wlan-ap/internal/pktbuf"
)

func newSim(t *testing.T) (*Sim, *ipc.Channel) {
	t.Helper()
	arb := pktbuf.NewArbiter(2, 2)
	toHigh := ipc.NewChannel(ipc.NewMailbox(64))
	fromHigh := ipc.NewChannel(ipc.NewMailbox(64))
	mac, err := net.ParseMAC("02:00:00:00:00:99")
	require.NoError(t, err)
	return NewSim(arb, toHigh, fromHigh, mac), toHigh
}

func TestAnnounceSendsMACAndStatus(t *testing.T) {
	sim, toHigh := newSim(t)
	require.NoError(t, sim.Announce())

	msg, err := toHigh.Read()
	require.NoError(t, err)
	require.Equal(t, ipc.GroupMACAddr, ipc.GroupOf(msg.MsgID))

	msg, err = toHigh.Read()
	require.NoError(t, err)
	require.Equal(t, ipc.GroupCPUStatus, ipc.GroupOf(msg.MsgID))
	require.Equal(t, ipc.CPUStatusInitialized, msg.Payload[0])
}

func TestHandleTXReadyCompletesHandshake(t *testing.T) {
	sim, toHigh := newSim(t)

	require.NoError(t, sim.Arbiter.LockTX(0, pktbuf.OwnerMACHigh))
	buf, err := sim.Arbiter.TXSlot(0)
	require.NoError(t, err)

	frame := []byte("hello wireless")
	info := pktbuf.FrameInfo{State: pktbuf.StateReady, Length: uint16(len(frame))}
	info.Marshal(buf)
	copy(buf[pktbuf.FrameInfoSize+pktbuf.PHYHeaderPad:], frame)
	require.NoError(t, sim.Arbiter.UnlockTX(0, pktbuf.OwnerMACHigh))

	require.NoError(t, sim.handleTXReady(0))
	require.Len(t, sim.Sent, 1)
	require.Equal(t, frame, sim.Sent[0])

	accept, err := toHigh.Read()
	require.NoError(t, err)
	require.Equal(t, ipc.CmdTXMPDUAccept, ipc.SubtypeOf(accept.MsgID))
	require.Equal(t, uint8(0), accept.Arg0)

	done, err := toHigh.Read()
	require.NoError(t, err)
	require.Equal(t, ipc.CmdTXMPDUDone, ipc.SubtypeOf(done.MsgID))

	locked, _, err := sim.Arbiter.StatusTX(0)
	require.NoError(t, err)
	require.False(t, locked, "slot must be unlocked after the handshake completes")
}

func TestDeliverRXNotifiesHigh(t *testing.T) {
	sim, toHigh := newSim(t)

	frame := []byte("inbound mpdu")
	require.NoError(t, sim.DeliverRX(frame, 4))

	msg, err := toHigh.Read()
	require.NoError(t, err)
	require.Equal(t, ipc.CmdRXMPDUReady, ipc.SubtypeOf(msg.MsgID))

	slot := int(msg.Arg0)
	require.NoError(t, sim.Arbiter.LockRX(slot, pktbuf.OwnerMACHigh))
	buf, err := sim.Arbiter.RXSlot(slot)
	require.NoError(t, err)

	info := pktbuf.UnmarshalFrameInfo(buf)
	require.Equal(t, uint8(pktbuf.StateRXFCSGood), info.State)
	require.Equal(t, uint16(len(frame)), info.Length)
	require.Equal(t, frame, buf[pktbuf.FrameInfoSize+pktbuf.PHYHeaderPad:pktbuf.FrameInfoSize+pktbuf.PHYHeaderPad+len(frame)])
}

func TestDeliverRXFailsWhenAllSlotsLocked(t *testing.T) {
	sim, _ := newSim(t)
	for n := 0; n < sim.Arbiter.NumRX(); n++ {
		require.NoError(t, sim.Arbiter.LockRX(n, pktbuf.OwnerMACHigh))
	}

	err := sim.DeliverRX([]byte("x"), 1)
	require.ErrorIs(t, err, ErrNoFreeSlot)
}
