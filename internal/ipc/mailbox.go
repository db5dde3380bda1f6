// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ipc

// Mailbox is a blocking, bounded, word-oriented FIFO standing in for the
// shared hardware mailbox register pair MAC-HIGH and MAC-LOW exchange
// words over (soc/bcm2835's MAILBOX_READ_REG/MAILBOX_WRITE_REG, generalized
// from a single VideoCore channel to a plain bounded channel since this
// module carries no hardware mailbox peripheral of its own).
type Mailbox struct {
	words chan uint32
}

// NewMailbox allocates a mailbox with the given word capacity.
func NewMailbox(capacity int) *Mailbox {
	return &Mailbox{words: make(chan uint32, capacity)}
}

// PutWord blocks until there is room to enqueue one word.
func (m *Mailbox) PutWord(w uint32) {
	m.words <- w
}

// GetWord blocks until a word is available.
func (m *Mailbox) GetWord() uint32 {
	return <-m.words
}

// TryGetWord returns a word without blocking; ok is false if the mailbox
// was empty.
func (m *Mailbox) TryGetWord() (w uint32, ok bool) {
	select {
	case w = <-m.words:
		return w, true
	default:
		return 0, false
	}
}
