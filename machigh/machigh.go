// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package machigh implements the upper-MAC control plane: the 802.11
// receive state machine, the Ethernet/wireless data-plane bridge, the TX
// double-buffer handshake with MAC-LOW, and the beacon/inactivity
// timers, ported from wlan_mac_ap.c's main loop and mpdu_process.
package machigh

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/usbarmory/wlan-ap/internal/assoc"
	"github.com/usbarmory/wlan-ap/internal/ethbridge"
	"github.com/usbarmory/wlan-ap/internal/ipc"
	"github.com/usbarmory/wlan-ap/internal/pktbuf"
	"github.com/usbarmory/wlan-ap/internal/pqueue"
	"github.com/usbarmory/wlan-ap/internal/ratectl"
	"github.com/usbarmory/wlan-ap/internal/sched"
)

// Config carries everything MacHigh needs that isn't discovered at
// runtime from MAC-LOW.
type Config struct {
	SSID    string
	Channel uint8
	MAC     net.HardwareAddr

	BeaconInterval      time.Duration
	AssociationCheckPeriod time.Duration
	InactivityTimeout   time.Duration
	MaxRetries          uint8

	BasicRates []uint8

	NumTXSlots, NumRXSlots int
	QueuePoolLength        int

	// ACL, if non-nil, is consulted on every association request; a
	// station whose address does not match is rejected.
	ACL func(addr net.HardwareAddr) bool
}

// DefaultConfig returns the operational constants named in the external
// interface: 100ms beacon interval, 10s association check, channel 9,
// retry max 7.
func DefaultConfig() Config {
	return Config{
		Channel:                9,
		BeaconInterval:         100 * time.Millisecond,
		AssociationCheckPeriod: 10 * time.Second,
		InactivityTimeout:      50 * time.Second,
		MaxRetries:             7,
		BasicRates:             []uint8{0x82, 0x84, 0x8b, 0x96},
		NumTXSlots:             16,
		NumRXSlots:             16,
		QueuePoolLength:        pqueue.DefaultPoolLength,
	}
}

// Stats are cumulative counters surfaced for diagnostics.
type Stats struct {
	RXFrames      uint64
	TXFrames      uint64
	TXAccepted    uint64
	TXCompleted   uint64
	RXDropped     uint64
	FramingErrors uint64
	Admissions    uint64
	Removals      uint64
}

// MacHigh is the upper-MAC control-plane state: the association table,
// packet queue pool, scheduler, TX double-buffer cursor, and the
// MAC-LOW transport (shared packet-buffer arbiter plus the two IPC
// channels).
type MacHigh struct {
	cfg Config
	log *zap.Logger

	arb      *pktbuf.Arbiter
	toLow    *ipc.Channel
	fromLow  *ipc.Channel

	table *assoc.Table
	pool  *pqueue.Pool
	sched *sched.Scheduler
	nic   ethbridge.NIC
	rate  ratectl.Policy

	mgmtLimiter *rate.Limiter

	seq uint16

	// txPktBuf is the double-buffer index MAC-HIGH currently owns in
	// TX_PENDING; waitForAccept holds off a new mpdu_transmit until
	// MAC-LOW has accepted the outstanding one.
	txPktBuf      int
	waitForAccept bool
	halted        bool

	stats Stats

	ethRx  chan []byte
	beacon chan struct{}
	assocCheck chan struct{}
}

// New constructs a MacHigh. arb is the shared packet-buffer arena; toLow
// and fromLow are the two halves of the IPC mailbox pair; nic is the
// Ethernet-side bridge.
func New(cfg Config, log *zap.Logger, arb *pktbuf.Arbiter, toLow, fromLow *ipc.Channel, nic ethbridge.NIC) *MacHigh {
	m := &MacHigh{
		cfg:         cfg,
		log:         log,
		arb:         arb,
		toLow:       toLow,
		fromLow:     fromLow,
		table:       assoc.NewTable(),
		pool:        pqueue.NewPoolWithQueues(cfg.QueuePoolLength),
		sched:       sched.New(),
		nic:         nic,
		rate:        ratectl.Static{},
		mgmtLimiter: rate.NewLimiter(rate.Limit(50), 10),
		ethRx:       make(chan []byte, 64),
		beacon:      make(chan struct{}, 1),
		assocCheck:  make(chan struct{}, 1),
	}
	return m
}

// Stats returns a snapshot of the cumulative counters.
func (m *MacHigh) Stats() Stats { return m.stats }

// waitForBoot blocks until MAC-LOW has announced its MAC address and
// CPU_STATUS initialized, per the IPC boot sequence. A CPU_STATUS
// exception bit during boot is fatal. The mailbox is drained eagerly
// while messages are available; backoff.Retry supplies the wait between
// polls once it runs dry, rather than a bare busy loop, since the wait is
// bounded by a real deadline in a hosted binary.
func (m *MacHigh) waitForBoot(ctx context.Context) error {
	op := func() (struct{}, error) {
		for {
			msg, err := m.fromLow.Read()
			if err == ipc.ErrNoMessage {
				return struct{}{}, err
			}
			if err != nil {
				return struct{}{}, backoff.Permanent(err)
			}

			switch ipc.GroupOf(msg.MsgID) {
			case ipc.GroupMACAddr:
				if len(msg.Payload) < 2 {
					continue
				}
				w0, w1 := msg.Payload[0], msg.Payload[1]
				m.cfg.MAC = net.HardwareAddr{
					byte(w0), byte(w0 >> 8), byte(w0 >> 16), byte(w0 >> 24),
					byte(w1), byte(w1 >> 8),
				}
			case ipc.GroupCPUStatus:
				if len(msg.Payload) > 0 && msg.Payload[0]&ipc.CPUStatusException != 0 {
					return struct{}{}, backoff.Permanent(fmt.Errorf("machigh: MAC-LOW reported exception during boot: %#x", msg.Payload[0]))
				}
				if len(msg.Payload) > 0 && msg.Payload[0]&ipc.CPUStatusInitialized != 0 {
					return struct{}{}, nil
				}
			}
		}
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
	return err
}

// Run performs the boot handshake, arms the TX double buffer and
// periodic timers, starts the Ethernet bridge, and services the main
// control loop until ctx is canceled.
func (m *MacHigh) Run(ctx context.Context) error {
	if err := m.waitForBoot(ctx); err != nil {
		return err
	}

	if err := m.toLow.Write(&ipc.Message{
		MsgID:   ipc.MsgID(ipc.GroupParam, ipc.ParamSetChannel),
		Payload: []uint32{uint32(m.cfg.Channel)},
	}); err != nil {
		return err
	}

	if err := m.armTXSlot(m.txPktBuf); err != nil {
		return err
	}

	go m.sched.Run(ctx)
	m.armBeacon()
	m.armAssociationCheck()

	go func() {
		_ = m.nic.Start(func(frame []byte) {
			select {
			case m.ethRx <- frame:
			case <-ctx.Done():
			}
		})
	}()

	return m.loop(ctx)
}

func (m *MacHigh) loop(ctx context.Context) error {
	for {
		if m.halted {
			<-ctx.Done()
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-m.beacon:
			m.transmitBeacon()

		case <-m.assocCheck:
			m.checkInactivity()

		case frame := <-m.ethRx:
			m.handleEthernetFrame(frame)
			m.pollEgress()

		default:
			m.pollIPC()
			m.pollEgress()
		}
	}
}

func (m *MacHigh) pollIPC() {
	msg, err := m.fromLow.Read()
	switch {
	case err == ipc.ErrNoMessage:
		return
	case err == ipc.ErrFraming:
		m.stats.FramingErrors++
		m.log.Warn("ipc framing error, resynchronized")
		return
	case err != nil:
		m.log.Error("ipc read failed", zap.Error(err))
		return
	}
	m.handleIPC(msg)
}

// halt stops further egress after a fatal MAC-LOW exception, per the
// error-handling design's "MAC-LOW exception: fatal, halt the main loop".
func (m *MacHigh) halt(reason string) {
	m.halted = true
	m.log.Error("halting main loop", zap.String("reason", reason))
}

// nextSeq returns the next outgoing sequence number, packed into the
// 12-bit sequence-number field by dot11.NewHeader.
func (m *MacHigh) nextSeq() uint16 {
	m.seq++
	return m.seq & 0x0FFF
}
