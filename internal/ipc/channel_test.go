// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	ch := NewChannel(NewMailbox(64))

	msg := &Message{
		MsgID:   MsgID(GroupCMD, CmdTXMPDUReady),
		Arg0:    3,
		Payload: []uint32{1, 2, 3},
	}

	require.NoError(t, ch.Write(msg))

	got, err := ch.Read()
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestReadEmptyMailbox(t *testing.T) {
	ch := NewChannel(NewMailbox(8))

	_, err := ch.Read()
	require.ErrorIs(t, err, ErrNoMessage)
}

func TestWriteRejectsMissingDelimiter(t *testing.T) {
	ch := NewChannel(NewMailbox(8))

	err := ch.Write(&Message{MsgID: 0x0001})
	require.ErrorIs(t, err, ErrFraming)

	_, err = ch.Read()
	require.ErrorIs(t, err, ErrNoMessage, "invalid message must not be written at all")
}

func TestWriteRejectsOversizedPayload(t *testing.T) {
	ch := NewChannel(NewMailbox(8))

	msg := &Message{
		MsgID:   MsgID(GroupCMD, CmdRXMPDUReady),
		Payload: make([]uint32, MaxPayloadWords+1),
	}

	require.ErrorIs(t, ch.Write(msg), ErrFraming)
}

func TestReadDrainsOnFramingError(t *testing.T) {
	mbox := NewMailbox(8)
	ch := NewChannel(mbox)

	// corrupt header: no delimiter.
	mbox.PutWord(0x00010002)
	// a few stray words that would otherwise be misread as payload.
	mbox.PutWord(0xAAAAAAAA)
	mbox.PutWord(0xBBBBBBBB)

	_, err := ch.Read()
	require.ErrorIs(t, err, ErrFraming)

	// the channel must have resynchronized: mailbox is now empty.
	_, err = ch.Read()
	require.ErrorIs(t, err, ErrNoMessage)
}

func TestReadValidHeaderSatisfiesInvariant(t *testing.T) {
	ch := NewChannel(NewMailbox(8))

	require.NoError(t, ch.Write(&Message{MsgID: MsgID(GroupCPUStatus, 0), Payload: []uint32{CPUStatusInitialized}}))

	msg, err := ch.Read()
	require.NoError(t, err)
	require.True(t, HasDelim(msg.MsgID))
	require.LessOrEqual(t, len(msg.Payload), MaxPayloadWords)
}

func TestMsgIDGroupSubtypeRoundTrip(t *testing.T) {
	id := MsgID(GroupParam, ParamSetChannel)
	require.Equal(t, GroupParam, GroupOf(id))
	require.Equal(t, ParamSetChannel, SubtypeOf(id))
	require.True(t, HasDelim(id))
}
