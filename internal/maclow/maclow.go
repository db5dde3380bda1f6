// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package maclow implements an in-process simulator of the MAC-LOW side of
// the shared packet-buffer and IPC mailbox protocol, standing in for the
// PHY/timing CPU the real system shares a bus with. It exists only to
// drive MAC-HIGH's control loop in tests: it answers TX handshake
// messages the way real firmware would and lets a test inject inbound
// 802.11 frames by writing directly into an RX slot.
package maclow

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/usbarmory/wlan-ap/internal/ipc"
	"github.com/usbarmory/wlan-ap/internal/pktbuf"
)

// ErrNoFreeSlot is returned by DeliverRX when every RX slot is currently
// locked.
var ErrNoFreeSlot = errors.New("maclow: no free rx slot")

// Sim is a simulated MAC-LOW: it shares the packet-buffer arbiter with
// MAC-HIGH and exchanges IPC messages over a pair of channels, one per
// direction, matching the real mailbox pair a split-MAC hands off across.
type Sim struct {
	Arbiter *pktbuf.Arbiter

	// ToHigh carries messages this simulator originates (RX_MPDU_READY,
	// TX_MPDU_ACCEPT, TX_MPDU_DONE, MAC_ADDR, CPU_STATUS).
	ToHigh *ipc.Channel
	// FromHigh carries messages MAC-HIGH originates (TX_MPDU_READY,
	// SET_CHANNEL).
	FromHigh *ipc.Channel

	MAC     net.HardwareAddr
	Channel uint8

	// Sent records every frame this simulator has accepted and completed
	// transmission for, in order, for test assertions.
	Sent [][]byte
}

// NewSim constructs a simulator sharing arb and talking over toHigh/fromHigh.
func NewSim(arb *pktbuf.Arbiter, toHigh, fromHigh *ipc.Channel, mac net.HardwareAddr) *Sim {
	return &Sim{
		Arbiter:  arb,
		ToHigh:   toHigh,
		FromHigh: fromHigh,
		MAC:      mac,
	}
}

// Announce sends the boot-time MAC_ADDR and CPU_STATUS(initialized)
// messages MAC-HIGH waits for before driving the egress pipeline.
func (s *Sim) Announce() error {
	if len(s.MAC) != 6 {
		return fmt.Errorf("maclow: invalid MAC %s", s.MAC)
	}
	addrMsg := &ipc.Message{
		MsgID: ipc.MsgID(ipc.GroupMACAddr, 0),
		Payload: []uint32{
			uint32(s.MAC[0]) | uint32(s.MAC[1])<<8 | uint32(s.MAC[2])<<16 | uint32(s.MAC[3])<<24,
			uint32(s.MAC[4]) | uint32(s.MAC[5])<<8,
		},
	}
	if err := s.ToHigh.Write(addrMsg); err != nil {
		return err
	}

	statusMsg := &ipc.Message{
		MsgID:   ipc.MsgID(ipc.GroupCPUStatus, 0),
		Payload: []uint32{ipc.CPUStatusInitialized},
	}
	return s.ToHigh.Write(statusMsg)
}

// Run services FromHigh until ctx is canceled, answering the TX handshake
// and PARAM messages MAC-HIGH sends.
func (s *Sim) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := s.FromHigh.Read()
		if errors.Is(err, ipc.ErrNoMessage) {
			continue
		}
		if err != nil {
			return err
		}

		if err := s.handle(msg); err != nil {
			return err
		}
	}
}

func (s *Sim) handle(msg *ipc.Message) error {
	switch ipc.GroupOf(msg.MsgID) {
	case ipc.GroupCMD:
		switch ipc.SubtypeOf(msg.MsgID) {
		case ipc.CmdTXMPDUReady:
			return s.handleTXReady(int(msg.Arg0))
		}
	case ipc.GroupParam:
		switch ipc.SubtypeOf(msg.MsgID) {
		case ipc.ParamSetChannel:
			if len(msg.Payload) > 0 {
				s.Channel = uint8(msg.Payload[0])
			}
		}
	}
	return nil
}

// handleTXReady locks the named TX slot, copies out the frame it carries,
// unlocks it, acknowledges with TX_MPDU_ACCEPT, then immediately completes
// the (simulated) over-the-air transmission and reports TX_MPDU_DONE with
// a successful verbose state.
func (s *Sim) handleTXReady(slot int) error {
	if err := s.Arbiter.LockTX(slot, pktbuf.OwnerMACLow); err != nil {
		return err
	}

	buf, err := s.Arbiter.TXSlot(slot)
	if err != nil {
		s.Arbiter.UnlockTX(slot, pktbuf.OwnerMACLow)
		return err
	}

	info := pktbuf.UnmarshalFrameInfo(buf)
	frameOff := pktbuf.FrameInfoSize + pktbuf.PHYHeaderPad
	frame := append([]byte(nil), buf[frameOff:frameOff+int(info.Length)]...)
	s.Sent = append(s.Sent, frame)

	info.StateVerbose = pktbuf.VerboseSuccess
	info.Marshal(buf)

	if err := s.Arbiter.UnlockTX(slot, pktbuf.OwnerMACLow); err != nil {
		return err
	}

	if err := s.ToHigh.Write(&ipc.Message{
		MsgID: ipc.MsgID(ipc.GroupCMD, ipc.CmdTXMPDUAccept),
		Arg0:  uint8(slot),
	}); err != nil {
		return err
	}

	return s.ToHigh.Write(&ipc.Message{
		MsgID: ipc.MsgID(ipc.GroupCMD, ipc.CmdTXMPDUDone),
		Arg0:  uint8(slot),
	})
}

// DeliverRX simulates an inbound over-the-air frame: it locks the first
// free RX slot, writes frame_info plus the frame bytes, unlocks, and
// notifies MAC-HIGH with RX_MPDU_READY.
func (s *Sim) DeliverRX(frame []byte, rate uint8) error {
	for n := 0; n < s.Arbiter.NumRX(); n++ {
		if err := s.Arbiter.LockRX(n, pktbuf.OwnerMACLow); err != nil {
			continue
		}

		buf, err := s.Arbiter.RXSlot(n)
		if err != nil {
			s.Arbiter.UnlockRX(n, pktbuf.OwnerMACLow)
			return err
		}

		info := pktbuf.FrameInfo{
			State:  pktbuf.StateRXFCSGood,
			Rate:   rate,
			Length: uint16(len(frame)),
		}
		info.Marshal(buf)

		frameOff := pktbuf.FrameInfoSize + pktbuf.PHYHeaderPad
		copy(buf[frameOff:], frame)

		if err := s.Arbiter.UnlockRX(n, pktbuf.OwnerMACLow); err != nil {
			return err
		}

		return s.ToHigh.Write(&ipc.Message{
			MsgID: ipc.MsgID(ipc.GroupCMD, ipc.CmdRXMPDUReady),
			Arg0:  uint8(n),
		})
	}

	return ErrNoFreeSlot
}
