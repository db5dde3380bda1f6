// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package machigh

import (
	"time"

	"go.uber.org/zap"

	"github.com/usbarmory/wlan-ap/internal/dot11"
	"github.com/usbarmory/wlan-ap/internal/pktbuf"
	"github.com/usbarmory/wlan-ap/internal/pqueue"
)

// armBeacon schedules the periodic beacon task on the coarse wheel. The
// callback only signals the main loop (per the concurrency model,
// scheduler callbacks must not call into the egress pipeline directly);
// transmitBeacon does the actual enqueue and re-arms itself.
func (m *MacHigh) armBeacon() {
	m.sched.Coarse.Schedule(m.cfg.BeaconInterval, func() {
		select {
		case m.beacon <- struct{}{}:
		default:
		}
	})
}

func (m *MacHigh) armAssociationCheck() {
	m.sched.Coarse.Schedule(m.cfg.AssociationCheckPeriod, func() {
		select {
		case m.assocCheck <- struct{}{}:
		default:
		}
	})
}

// transmitBeacon builds and enqueues a beacon frame at low priority, then
// re-arms itself for the next period.
func (m *MacHigh) transmitBeacon() {
	frame := dot11.BuildBeaconProbe(dot11.SubtypeBeacon, dot11.Broadcast, m.cfg.MAC, m.cfg.MAC,
		m.nextSeq(), m.cfg.SSID, m.cfg.Channel, m.cfg.BasicRates)

	m.enqueueManagement(frame, nil, pqueue.QueueLow, pktbuf.FlagFillTimestamp)
	m.armBeacon()
}

// checkInactivity scans the association table for stations that have not
// been heard from within the inactivity timeout, deauthenticates and
// removes each, then re-arms itself.
func (m *MacHigh) checkInactivity() {
	now := time.Now()
	for _, addr := range m.table.Inactive(now, m.cfg.InactivityTimeout) {
		if m.mgmtLimiter.Allow() {
			frame := dot11.BuildDeauth(addr, m.cfg.MAC, m.cfg.MAC, m.nextSeq(), dot11.ReasonInactivity)
			m.enqueueManagement(frame, nil, pqueue.QueueLow, pktbuf.FlagFillDuration|pktbuf.FlagReqTO)
		}

		if m.table.Remove(addr) {
			m.stats.Removals++
			m.log.Info("removed inactive station", zap.Stringer("addr", addr))
		}
	}
	m.armAssociationCheck()
}
