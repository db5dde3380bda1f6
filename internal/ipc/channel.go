// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ipc

import "errors"

// ErrFraming is returned when a message or a word read from the mailbox
// does not carry a valid header.
var ErrFraming = errors.New("ipc: framing error")

// ErrNoMessage is returned by Read when the mailbox currently holds no
// message.
var ErrNoMessage = errors.New("ipc: no message available")

// Channel is the framed message transport layered over a Mailbox. Write
// blocks until the full message has been placed in the mailbox; Read is
// nonblocking for the initial header word but blocks for the stated
// payload once a valid header has been seen.
type Channel struct {
	mbox *Mailbox
}

// NewChannel wraps mbox with the IPC framing protocol.
func NewChannel(mbox *Mailbox) *Channel {
	return &Channel{mbox: mbox}
}

// Write validates msg and, only if valid, blocks writing its header word
// followed by its payload words. On an invalid message it returns a framing
// error without writing anything, so a corrupt header never reaches the
// mailbox.
func (c *Channel) Write(msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	c.mbox.PutWord(msg.header())
	for _, w := range msg.Payload {
		c.mbox.PutWord(w)
	}

	return nil
}

// Read makes one nonblocking attempt to read a message. If the mailbox is
// empty it returns ErrNoMessage. If the word read does not carry a valid
// header, the channel drains the mailbox — discarding words until it is
// empty — so the stream can resynchronize to the next valid header emitted
// by the writer, and returns ErrFraming. On a valid header it blocks
// reading the stated number of payload words and returns the assembled
// Message.
//
// Atomicity: a corrupt header never leaves a partial message in the
// mailbox — drain-on-error is the only resynchronization mechanism, per
// the external interface contract.
func (c *Channel) Read() (*Message, error) {
	word, ok := c.mbox.TryGetWord()
	if !ok {
		return nil, ErrNoMessage
	}

	msgID, numWords, arg0 := headerToMessage(word)

	if !HasDelim(msgID) || numWords > MaxPayloadWords {
		c.drain()
		return nil, ErrFraming
	}

	payload := make([]uint32, numWords)
	for i := range payload {
		payload[i] = c.mbox.GetWord()
	}

	return &Message{MsgID: msgID, Arg0: arg0, Payload: payload}, nil
}

// drain discards all words currently queued in the mailbox.
func (c *Channel) drain() {
	for {
		if _, ok := c.mbox.TryGetWord(); !ok {
			return
		}
	}
}
