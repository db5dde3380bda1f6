// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package machigh

import (
	"net"
	"time"

	"github.com/gopacket/gopacket/layers"
	"go.uber.org/zap"

	"github.com/usbarmory/wlan-ap/internal/dot11"
	"github.com/usbarmory/wlan-ap/internal/ethbridge"
	"github.com/usbarmory/wlan-ap/internal/ipc"
	"github.com/usbarmory/wlan-ap/internal/pktbuf"
	"github.com/usbarmory/wlan-ap/internal/pqueue"
)

// handleIPC dispatches a message read from MAC-LOW by group/subtype:
// RX_MPDU_READY drives the receive state machine, TX_MPDU_ACCEPT/DONE
// complete the egress handshake, and a CPU_STATUS exception halts the
// main loop.
func (m *MacHigh) handleIPC(msg *ipc.Message) {
	switch ipc.GroupOf(msg.MsgID) {
	case ipc.GroupCMD:
		switch ipc.SubtypeOf(msg.MsgID) {
		case ipc.CmdRXMPDUReady:
			m.handleRXReady(int(msg.Arg0))
		case ipc.CmdTXMPDUAccept:
			m.handleTXAccept(msg.Arg0)
		case ipc.CmdTXMPDUDone:
			m.handleTXDone(msg.Arg0)
		}
	case ipc.GroupCPUStatus:
		if len(msg.Payload) > 0 && msg.Payload[0]&ipc.CPUStatusException != 0 {
			m.halt("mac-low exception")
		}
	}
}

// handleRXReady locks slot, parses the frame it carries, and dispatches
// it by frame type. Whatever the outcome, the slot is always released
// back to MAC-LOW before returning, matching the original design's
// receive ISR contract.
func (m *MacHigh) handleRXReady(slot int) {
	if err := m.arb.LockRX(slot, pktbuf.OwnerMACHigh); err != nil {
		m.log.Warn("rx ready for slot still held by mac-low", zap.Int("slot", slot))
		return
	}
	defer m.arb.UnlockRX(slot, pktbuf.OwnerMACHigh)

	buf, err := m.arb.RXSlot(slot)
	if err != nil {
		m.log.Error("rx ready: invalid slot", zap.Int("slot", slot))
		return
	}

	info := pktbuf.UnmarshalFrameInfo(buf)
	m.stats.RXFrames++

	if info.State != pktbuf.StateRXFCSGood {
		m.stats.RXDropped++
		return
	}

	frameOff := pktbuf.FrameInfoSize + pktbuf.PHYHeaderPad
	if int(info.Length) > len(buf)-frameOff {
		m.stats.RXDropped++
		return
	}
	frame := buf[frameOff : frameOff+int(info.Length)]

	m.dispatchRX(frame)
}

// dispatchRX implements the receive state machine: association-table
// bookkeeping and per-subtype handling, mirroring mpdu_process's switch
// over frame_control_1.
func (m *MacHigh) dispatchRX(frame []byte) {
	hdr, err := dot11.ParseHeader(frame)
	if err != nil {
		m.stats.RXDropped++
		return
	}
	body := frame[dot11.HeaderLen:]
	now := time.Now()

	switch hdr.Type() {
	case dot11.TypeData:
		m.handleData(hdr, body, now)

	case dot11.TypeMgmt:
		if !sameAddr(hdr.Addr3, m.cfg.MAC) && !sameAddr(hdr.Addr3, dot11.Broadcast) {
			return
		}
		switch hdr.Subtype() {
		case dot11.SubtypeProbeReq:
			m.handleProbeReq(hdr, body)
		case dot11.SubtypeAuth:
			m.handleAuth(hdr, body, now)
		case dot11.SubtypeAssocReq, dot11.SubtypeReassocReq:
			m.handleAssocReq(hdr, body, now)
		case dot11.SubtypeDisassoc:
			m.handleDisassoc(hdr)
		}

	default:
		// control frames carry nothing this management plane acts on.
	}
}

// handleData forwards an uplink data frame to the Ethernet bridge.
// IPv6 multicast destinations (address beginning 33:33) are
// forward-eligible regardless of association state; everything else
// requires TO_DS set and an associated source.
func (m *MacHigh) handleData(hdr dot11.Header, body []byte, now time.Time) {
	dst := m.bridgeDst(hdr)

	if dst[0] == 0x33 && dst[1] == 0x33 {
		m.forwardDataToEthernet(dst, hdr.Addr2, body)
		return
	}

	if hdr.FrameControl2&dot11.FlagToDS == 0 {
		return
	}

	station, found, dup := m.table.UpdateRX(hdr.Addr2, hdr.SequenceNumber(), now)
	if !found {
		if m.mgmtLimiter.Allow() {
			frame := dot11.BuildDeauth(hdr.Addr2, m.cfg.MAC, m.cfg.MAC, m.nextSeq(), dot11.ReasonNonAssociatedSTA)
			m.enqueueManagement(frame, nil, pqueue.QueueHigh, pktbuf.FlagFillDuration|pktbuf.FlagReqTO)
		}
		return
	}
	if dup {
		return
	}

	m.forwardDataToEthernet(dst, station.Addr, body)
}

// forwardDataToEthernet decapsulates an 802.11 data-frame body and hands
// the recovered Ethernet frame to the NIC.
func (m *MacHigh) forwardDataToEthernet(dst, src net.HardwareAddr, body []byte) {
	ethertype, payload, ok := dot11.DecapsulateData(body)
	if !ok {
		m.stats.RXDropped++
		return
	}

	eth, err := ethbridge.EncodeEthernet(dst, src, layers.EthernetType(ethertype), payload)
	if err != nil {
		m.log.Error("ethernet encode failed", zap.Error(err))
		return
	}
	if err := m.nic.Transmit(eth); err != nil {
		m.log.Error("ethernet transmit failed", zap.Error(err))
	}
}

// bridgeDst recovers the original Ethernet destination carried in
// address 3 of an uplink data frame.
func (m *MacHigh) bridgeDst(hdr dot11.Header) net.HardwareAddr {
	return hdr.Addr3
}

func (m *MacHigh) handleProbeReq(hdr dot11.Header, body []byte) {
	elements := dot11.ParseProbeReq(body)
	if ssid, ok := dot11.Find(elements, dot11.TagSSID); ok && len(ssid.Data) > 0 && string(ssid.Data) != m.cfg.SSID {
		return
	}
	if !m.mgmtLimiter.Allow() {
		return
	}

	frame := dot11.BuildBeaconProbe(dot11.SubtypeProbeResp, hdr.Addr2, m.cfg.MAC, m.cfg.MAC,
		m.nextSeq(), m.cfg.SSID, m.cfg.Channel, m.cfg.BasicRates)
	m.enqueueManagement(frame, nil, pqueue.QueueHigh, pktbuf.FlagFillTimestamp)
}

// handleAuth answers an authentication request. Only the open-system
// algorithm is supported; any other algorithm gets a rejection response
// rather than silence.
func (m *MacHigh) handleAuth(hdr dot11.Header, body []byte, now time.Time) {
	algo, txSeq, _, ok := dot11.ParseAuth(body)
	if !ok || txSeq != dot11.AuthSeqRequest {
		return
	}
	if !m.mgmtLimiter.Allow() {
		return
	}

	if algo != dot11.AuthAlgoOpenSystem {
		frame := dot11.BuildAuth(hdr.Addr2, m.cfg.MAC, m.cfg.MAC, m.nextSeq(), dot11.AuthSeqResponse, dot11.StatusRejectChallengeFail)
		m.enqueueManagement(frame, nil, pqueue.QueueHigh, pktbuf.FlagReqTO)
		return
	}

	if m.cfg.ACL != nil && !m.cfg.ACL(hdr.Addr2) {
		frame := dot11.BuildAuth(hdr.Addr2, m.cfg.MAC, m.cfg.MAC, m.nextSeq(), dot11.AuthSeqResponse, dot11.StatusUnspecifiedFailure)
		m.enqueueManagement(frame, nil, pqueue.QueueHigh, pktbuf.FlagReqTO)
		return
	}

	frame := dot11.BuildAuth(hdr.Addr2, m.cfg.MAC, m.cfg.MAC, m.nextSeq(), dot11.AuthSeqResponse, dot11.StatusSuccess)
	m.enqueueManagement(frame, nil, pqueue.QueueHigh, pktbuf.FlagReqTO)
}

func (m *MacHigh) handleAssocReq(hdr dot11.Header, body []byte, now time.Time) {
	var elements []dot11.Element
	switch hdr.Subtype() {
	case dot11.SubtypeReassocReq:
		_, _, _, els, ok := dot11.ParseReassocReq(body)
		if !ok {
			return
		}
		elements = els
	default:
		_, _, els, ok := dot11.ParseAssocReq(body)
		if !ok {
			return
		}
		elements = els
	}
	_ = elements

	if !m.mgmtLimiter.Allow() {
		return
	}

	if m.cfg.ACL != nil && !m.cfg.ACL(hdr.Addr2) {
		frame := dot11.BuildAssocResp(dot11.SubtypeAssocResp, hdr.Addr2, m.cfg.MAC, m.cfg.MAC, m.nextSeq(),
			dot11.StatusUnspecifiedFailure, 0, m.cfg.BasicRates)
		m.enqueueManagement(frame, nil, pqueue.QueueHigh, pktbuf.FlagReqTO)
		return
	}

	station, isNew := m.table.Admit(hdr.Addr2, now)
	if station == nil {
		frame := dot11.BuildAssocResp(dot11.SubtypeAssocResp, hdr.Addr2, m.cfg.MAC, m.cfg.MAC, m.nextSeq(),
			dot11.StatusUnspecifiedFailure, 0, m.cfg.BasicRates)
		m.enqueueManagement(frame, nil, pqueue.QueueHigh, pktbuf.FlagReqTO)
		return
	}
	if isNew {
		m.stats.Admissions++
		m.log.Info("station associated", zap.Stringer("addr", station.Addr), zap.Uint16("aid", station.AID))
	}

	resp := dot11.SubtypeAssocResp
	if hdr.Subtype() == dot11.SubtypeReassocReq {
		resp = dot11.SubtypeReassocResp
	}
	frame := dot11.BuildAssocResp(resp, hdr.Addr2, m.cfg.MAC, m.cfg.MAC, m.nextSeq(),
		dot11.StatusSuccess, station.AID, m.cfg.BasicRates)
	m.enqueueManagement(frame, station, pqueue.QueueHigh, pktbuf.FlagReqTO)
}

func (m *MacHigh) handleDisassoc(hdr dot11.Header) {
	if m.table.Remove(hdr.Addr2) {
		m.stats.Removals++
		m.log.Info("station disassociated", zap.Stringer("addr", hdr.Addr2))
	}
}

// handleEthernetFrame encapsulates a host-side Ethernet frame as an
// 802.11 data frame addressed to its destination station, if associated,
// and enqueues it at low priority.
func (m *MacHigh) handleEthernetFrame(frame []byte) {
	dst, src, ethertype, payload, ok := ethbridge.DecodeEthernet(frame)
	if !ok {
		return
	}

	station, found := m.table.Find(dst)
	if !found {
		return
	}

	out := dot11.BuildDataToDS(station.Addr, m.cfg.MAC, src, m.nextSeq(), uint16(ethertype), payload)
	m.enqueueManagement(out, station, pqueue.QueueLow, pktbuf.FlagFillDuration)
}

func sameAddr(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
