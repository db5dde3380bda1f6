// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package machigh

import (
	"go.uber.org/zap"

	"github.com/usbarmory/wlan-ap/internal/assoc"
	"github.com/usbarmory/wlan-ap/internal/dot11"
	"github.com/usbarmory/wlan-ap/internal/ipc"
	"github.com/usbarmory/wlan-ap/internal/pktbuf"
	"github.com/usbarmory/wlan-ap/internal/pqueue"
)

// broadcastRate is the rate stamped on frames with no destination station
// (broadcast/multicast management), fixed at the lowest basic rate so every
// associated station can decode it.
const broadcastRate = dot11.RateBPSK12 // WLAN_MAC_RATE_BPSK12

// enqueueManagement checks out one descriptor, copies frame into it and
// tags it with station/flags/max-retry, and enqueues it on q. Management
// replies always inherit the configured maximum retry count.
func (m *MacHigh) enqueueManagement(frame []byte, station *assoc.Station, q int, flags uint8) {
	batch := m.pool.Checkout(1)
	d := batch.First()
	if d == nil {
		m.log.Warn("queue exhausted, dropping management frame")
		return
	}

	n := copy(d.Frame, frame)
	d.Station = station
	d.Info = pktbuf.FrameInfo{
		Length:   uint16(n),
		Flags:    flags,
		RetryMax: m.cfg.MaxRetries,
	}

	m.pool.EnqueueAfterEnd(q, batch)
}

// pollEgress attempts exactly one dequeue-and-transmit, high-priority ring
// first, matching the cross-ring arbitration rule in the external
// interface. It is a no-op while a TX acceptance is outstanding, or after
// a fatal halt.
func (m *MacHigh) pollEgress() {
	if m.waitForAccept || m.halted {
		return
	}

	for _, q := range []int{pqueue.QueueHigh, pqueue.QueueLow} {
		ring := m.pool.DequeueFromBeginning(q, 1)
		d := ring.First()
		if d == nil {
			continue
		}

		m.transmit(d)
		m.pool.Checkin(ring)
		return
	}
}

// transmit implements mpdu_transmit: bulk-copy the descriptor's frame into
// the TX slot MAC-HIGH currently owns, stamp AID and rate, hand ownership
// to MAC-LOW and notify it with TX_MPDU_READY.
func (m *MacHigh) transmit(d *pqueue.Descriptor) {
	buf, err := m.arb.TXSlot(m.txPktBuf)
	if err != nil {
		m.log.Error("tx slot unavailable", zap.Error(err))
		return
	}

	aid := uint16(0)
	rate := uint8(broadcastRate)
	if d.Station != nil {
		aid = d.Station.AID
		rate = m.rate.Rate(d.Station)
	}

	info := d.Info
	info.State = pktbuf.StateReady
	info.AID = aid
	info.Rate = rate
	info.Marshal(buf)

	frameOff := pktbuf.FrameInfoSize + pktbuf.PHYHeaderPad
	copy(buf[frameOff:], d.Frame[:info.Length])

	if err := m.arb.UnlockTX(m.txPktBuf, pktbuf.OwnerMACHigh); err != nil {
		m.log.Error("failed to release tx slot", zap.Error(err))
		return
	}

	m.waitForAccept = true
	m.stats.TXFrames++

	if err := m.toLow.Write(&ipc.Message{
		MsgID: ipc.MsgID(ipc.GroupCMD, ipc.CmdTXMPDUReady),
		Arg0:  uint8(m.txPktBuf),
	}); err != nil {
		m.log.Error("failed to signal tx ready", zap.Error(err))
	}
}

// armTXSlot locks slot for MAC-HIGH and marks it pending, claiming it as
// the current half of the TX double buffer.
func (m *MacHigh) armTXSlot(slot int) error {
	if err := m.arb.LockTX(slot, pktbuf.OwnerMACHigh); err != nil {
		return err
	}
	buf, err := m.arb.TXSlot(slot)
	if err != nil {
		return err
	}
	info := pktbuf.FrameInfo{State: pktbuf.StateTXPending}
	info.Marshal(buf)
	return nil
}

// handleTXAccept processes TX_MPDU_ACCEPT: MAC-LOW has taken ownership of
// the outstanding slot, so MAC-HIGH toggles tx_pkt_buf and arms the new
// current slot for the next transmission.
func (m *MacHigh) handleTXAccept(slot uint8) {
	if int(slot) != m.txPktBuf {
		m.log.Error("tx accept for unexpected slot", zap.Uint8("slot", slot), zap.Int("expected", m.txPktBuf))
		return
	}

	m.txPktBuf = (m.txPktBuf + 1) % 2
	m.waitForAccept = false

	if err := m.armTXSlot(m.txPktBuf); err != nil {
		m.log.Error("failed to arm next tx slot", zap.Error(err))
	}
}

// handleTXDone processes TX_MPDU_DONE: MAC-LOW has finished the over-the-air
// attempt (successful or not) and released the slot back to MAC-HIGH,
// which reads the final frame_info to update completion stats and report
// the outcome to the rate-control policy.
func (m *MacHigh) handleTXDone(slot uint8) {
	if err := m.arb.LockTX(int(slot), pktbuf.OwnerMACHigh); err != nil {
		m.log.Error("tx done: slot still held by mac-low", zap.Uint8("slot", slot))
		return
	}
	defer m.arb.UnlockTX(int(slot), pktbuf.OwnerMACHigh)

	buf, err := m.arb.TXSlot(int(slot))
	if err != nil {
		m.log.Error("tx done: invalid slot", zap.Uint8("slot", slot))
		return
	}

	info := pktbuf.UnmarshalFrameInfo(buf)
	m.stats.TXCompleted++

	if info.AID == 0 {
		return
	}
	if s, ok := m.stationByAID(info.AID); ok {
		m.rate.Report(s, info.StateVerbose == pktbuf.VerboseSuccess, info.RetryCount)
	}
}

func (m *MacHigh) stationByAID(aid uint16) (*assoc.Station, bool) {
	for _, s := range m.table.Occupied() {
		if s.AID == aid {
			return m.table.Find(s.Addr)
		}
	}
	return nil, false
}
