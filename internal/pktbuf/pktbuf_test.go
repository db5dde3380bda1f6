// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pktbuf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockUnlockRoundTrip(t *testing.T) {
	a := NewArbiter(16, 16)

	require.NoError(t, a.LockTX(0, OwnerMACHigh))

	locked, owner, err := a.StatusTX(0)
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, OwnerMACHigh, owner)

	require.NoError(t, a.UnlockTX(0, OwnerMACHigh))

	locked, owner, err = a.StatusTX(0)
	require.NoError(t, err)
	require.False(t, locked)
	require.Equal(t, OwnerNone, owner)
}

func TestTryLockContention(t *testing.T) {
	a := NewArbiter(16, 16)

	require.NoError(t, a.LockRX(3, OwnerMACLow))

	err := a.LockRX(3, OwnerMACHigh)
	require.ErrorIs(t, err, ErrAlreadyLocked)
}

func TestUnlockByNonOwner(t *testing.T) {
	a := NewArbiter(16, 16)

	require.NoError(t, a.LockTX(1, OwnerMACHigh))

	err := a.UnlockTX(1, OwnerMACLow)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestInvalidIndexRejected(t *testing.T) {
	a := NewArbiter(16, 16)

	require.True(t, errors.Is(a.LockTX(16, OwnerMACHigh), ErrInvalidIndex))
	require.True(t, errors.Is(a.LockRX(-1, OwnerMACHigh), ErrInvalidIndex))

	_, _, err := a.StatusTX(99)
	require.ErrorIs(t, err, ErrInvalidIndex)
}

func TestMutexIDFlatSpace(t *testing.T) {
	a := NewArbiter(16, 16)

	require.Equal(t, 0, a.MutexID(true, 0))
	require.Equal(t, 15, a.MutexID(true, 15))
	require.Equal(t, 16, a.MutexID(false, 0))
	require.Equal(t, 31, a.MutexID(false, 15))
}

func TestFrameInfoRoundTrip(t *testing.T) {
	fi := FrameInfo{
		State:        StateReady,
		Rate:         4,
		Length:       321,
		Flags:        FlagFillDuration | FlagReqTO,
		RetryCount:   1,
		RetryMax:     7,
		StateVerbose: VerboseSuccess,
		AID:          0xC001,
		RSSI:         42,
	}

	buf := make([]byte, FrameInfoSize)
	fi.Marshal(buf)

	got := UnmarshalFrameInfo(buf)
	require.Equal(t, fi, got)
}

// TestSlotEmptyAtRestImpliesUnlocked exercises the invariant: a slot in state EMPTY
// at rest is unlocked (spec.md section 8).
func TestSlotEmptyAtRestImpliesUnlocked(t *testing.T) {
	a := NewArbiter(2, 2)

	require.NoError(t, a.LockTX(0, OwnerMACHigh))
	buf, err := a.TXSlot(0)
	require.NoError(t, err)

	fi := FrameInfo{State: StateEmpty}
	fi.Marshal(buf)

	require.NoError(t, a.UnlockTX(0, OwnerMACHigh))

	locked, _, err := a.StatusTX(0)
	require.NoError(t, err)
	require.False(t, locked)
}
