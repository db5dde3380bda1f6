// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package assoc

import (
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	a, err := net.ParseMAC(s)
	require.NoError(t, err)
	return a
}

func TestNewTableInitialization(t *testing.T) {
	tbl := NewTable()

	require.Equal(t, 0, tbl.NextFreeIndex())
	require.Equal(t, uint16(1), tbl.entries[0].AID)
	require.Equal(t, uint16(MaxAssociations+1), tbl.entries[MaxAssociations].AID)
	require.True(t, tbl.entries[0].isFree())
}

func TestAdmitNewStationAssignsStableAID(t *testing.T) {
	tbl := NewTable()
	addr := mustAddr(t, "02:00:00:00:00:01")

	s, isNew := tbl.Admit(addr, time.Unix(0, 0))
	require.True(t, isNew)
	require.Equal(t, uint16(1), s.AID)
	require.Equal(t, 1, tbl.NextFreeIndex())

	found, ok := tbl.Find(addr)
	require.True(t, ok)
	require.Equal(t, s.AID, found.AID)
}

func TestReassociationReusesExistingAID(t *testing.T) {
	tbl := NewTable()
	addr := mustAddr(t, "02:00:00:00:00:01")

	s1, _ := tbl.Admit(addr, time.Unix(0, 0))
	s2, isNew := tbl.Admit(addr, time.Unix(1, 0))

	require.False(t, isNew)
	require.Equal(t, s1.AID, s2.AID)
	require.Equal(t, 1, tbl.NextFreeIndex())
}

func TestAdmitRemoveRoundTripRestoresCursorAndAID(t *testing.T) {
	tbl := NewTable()
	addr := mustAddr(t, "02:00:00:00:00:01")

	s, _ := tbl.Admit(addr, time.Unix(0, 0))
	aid := s.AID

	require.True(t, tbl.Remove(addr))
	require.Equal(t, 0, tbl.NextFreeIndex())

	s2, isNew := tbl.Admit(addr, time.Unix(2, 0))
	require.True(t, isNew)
	require.Equal(t, aid, s2.AID, "freed AID must be reassigned on next admission")
}

func TestAdmissionWhenTableFullStillSucceeds(t *testing.T) {
	tbl := NewTable()
	tbl.nextFreeIndex = MaxAssociations - 2

	addr := mustAddr(t, "02:00:00:00:00:FE")
	s, isNew := tbl.Admit(addr, time.Unix(0, 0))

	require.True(t, isNew)
	require.NotNil(t, s)
	require.Equal(t, MaxAssociations-2, tbl.NextFreeIndex(), "cursor must not advance once at the bound")
}

func TestDuplicateSequenceDropped(t *testing.T) {
	tbl := NewTable()
	addr := mustAddr(t, "02:00:00:00:00:01")
	tbl.Admit(addr, time.Unix(0, 0))

	_, found, dup := tbl.UpdateRX(addr, 1, time.Unix(1, 0))
	require.True(t, found)
	require.False(t, dup)

	_, found, dup = tbl.UpdateRX(addr, 1, time.Unix(2, 0))
	require.True(t, found)
	require.True(t, dup, "repeated sequence number must be flagged as duplicate")
}

func TestRemovalCompactsTablePreservingOrder(t *testing.T) {
	tbl := NewTable()

	addrs := []net.HardwareAddr{
		mustAddr(t, "02:00:00:00:00:01"),
		mustAddr(t, "02:00:00:00:00:02"),
		mustAddr(t, "02:00:00:00:00:03"),
	}

	for _, a := range addrs {
		tbl.Admit(a, time.Unix(0, 0))
	}
	require.Equal(t, 3, tbl.NextFreeIndex())

	require.True(t, tbl.Remove(addrs[1]))
	require.Equal(t, 2, tbl.NextFreeIndex())

	occ := tbl.Occupied()
	require.Len(t, occ, 2)

	gotAddrs := []string{occ[0].Addr.String(), occ[1].Addr.String()}
	wantAddrs := []string{addrs[0].String(), addrs[2].String()}
	if diff := cmp.Diff(wantAddrs, gotAddrs); diff != "" {
		t.Fatalf("occupied addresses after compaction mismatch (-want +got):\n%s", diff)
	}

	// pairwise-distinct AID invariant
	seen := map[uint16]bool{}
	for _, s := range occ {
		require.False(t, seen[s.AID])
		seen[s.AID] = true
	}
}

func TestInactiveStationsReportedAfterThreshold(t *testing.T) {
	tbl := NewTable()
	addr := mustAddr(t, "02:00:00:00:00:01")
	tbl.Admit(addr, time.Unix(0, 0))

	now := time.Unix(0, 0).Add(time.Hour)
	inactive := tbl.Inactive(now, 50*time.Second)

	require.Len(t, inactive, 1)
	require.Equal(t, addr.String(), inactive[0].String())
}
