// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ethbridge

import (
	"fmt"
	"net"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Tap is a Linux TUN/TAP backed NIC, opened in IFF_TAP|IFF_NO_PI mode so
// every read/write is a complete Ethernet II frame with no additional
// packet-info header.
type Tap struct {
	file *os.File
	name string
	mac  net.HardwareAddr
}

type ifReq struct {
	Name  [unix.IFNAMSIZ]byte
	Flags uint16
	_     [22]byte
}

// NewTap opens (creating if necessary) the named TAP device.
func NewTap(name string, mac net.HardwareAddr) (*Tap, error) {
	f, err := os.OpenFile("/dev/net/tun", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("ethbridge: open /dev/net/tun: %w", err)
	}

	var req ifReq
	copy(req.Name[:], name)
	req.Flags = unix.IFF_TAP | unix.IFF_NO_PI

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(unix.TUNSETIFF), uintptr(unsafe.Pointer(&req))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("ethbridge: TUNSETIFF %s: %w", name, errno)
	}

	return &Tap{file: f, name: name, mac: mac}, nil
}

// MAC returns the configured hardware address.
func (t *Tap) MAC() net.HardwareAddr { return t.mac }

// Start reads frames from the TAP device until it is closed, invoking
// handler for each.
func (t *Tap) Start(handler func([]byte)) error {
	buf := make([]byte, 1522)
	for {
		n, err := t.file.Read(buf)
		if err != nil {
			return fmt.Errorf("ethbridge: read %s: %w", t.name, err)
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		handler(frame)
	}
}

// Transmit writes frame to the TAP device.
func (t *Tap) Transmit(frame []byte) error {
	_, err := t.file.Write(frame)
	return err
}

// Close releases the device descriptor.
func (t *Tap) Close() error {
	return t.file.Close()
}
