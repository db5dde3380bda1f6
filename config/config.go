// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package config loads the access point's BSS and runtime configuration
// from YAML, following the agent/balancer convention of one Config struct
// decoded straight off an os.Open'd file.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/usbarmory/wlan-ap/internal/pktbuf"
	"github.com/usbarmory/wlan-ap/internal/pqueue"
	"github.com/usbarmory/wlan-ap/machigh"
)

// Config is the on-disk representation of an access point's configuration.
type Config struct {
	SSID    string `yaml:"ssid"`
	Channel uint8  `yaml:"channel"`
	MAC     string `yaml:"mac,omitempty"`

	Uplink string `yaml:"uplink"`

	BeaconInterval         time.Duration `yaml:"beacon_interval"`
	AssociationCheckPeriod time.Duration `yaml:"association_check_period"`
	InactivityTimeout      time.Duration `yaml:"inactivity_timeout"`
	MaxRetries             uint8         `yaml:"max_retries"`

	// SlotSize accepts a human-readable size ("4KiB") for documentation
	// and validation; the arbiter's slot size is currently fixed at
	// pktbuf.SlotSize, so this is rejected if it disagrees rather than
	// resizing the arena.
	SlotSize        datasize.ByteSize `yaml:"slot_size"`
	QueuePoolLength int               `yaml:"queue_pool_length"`

	NumTXSlots int `yaml:"num_tx_slots"`
	NumRXSlots int `yaml:"num_rx_slots"`

	// AdmissionACL is a set of glob patterns matched against a
	// requesting station's MAC address (colon-hex form). A station
	// matching none of the patterns is rejected at authentication and
	// association. An empty list admits every station.
	AdmissionACL []string `yaml:"admission_acl"`

	DebugAddr string `yaml:"debug_addr"`
}

// Default returns the configuration a fresh install starts from.
func Default() Config {
	d := machigh.DefaultConfig()
	return Config{
		SSID:                   "wlan-ap",
		Channel:                d.Channel,
		Uplink:                 "tap0",
		BeaconInterval:         d.BeaconInterval,
		AssociationCheckPeriod: d.AssociationCheckPeriod,
		InactivityTimeout:      d.InactivityTimeout,
		MaxRetries:             d.MaxRetries,
		SlotSize:               datasize.ByteSize(4096),
		QueuePoolLength:        pqueue.DefaultPoolLength,
		NumTXSlots:             d.NumTXSlots,
		NumRXSlots:             d.NumRXSlots,
	}
}

// Load reads and decodes the YAML configuration at path, starting from
// Default so an operator only needs to override what differs.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	return cfg, nil
}

// ACL compiles AdmissionACL into the matcher function machigh.Config
// expects, or nil if the list is empty (admit everyone).
func (c Config) ACL() (func(addr net.HardwareAddr) bool, error) {
	if len(c.AdmissionACL) == 0 {
		return nil, nil
	}

	globs := make([]glob.Glob, 0, len(c.AdmissionACL))
	for _, pattern := range c.AdmissionACL {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("config: invalid admission_acl pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}

	return func(addr net.HardwareAddr) bool {
		s := addr.String()
		for _, g := range globs {
			if g.Match(s) {
				return true
			}
		}
		return false
	}, nil
}

// MacHighConfig translates the decoded YAML configuration into a
// machigh.Config, resolving the admission ACL and the BSS address.
func (c Config) MacHighConfig() (machigh.Config, error) {
	if c.SlotSize != 0 && c.SlotSize != datasize.ByteSize(pktbuf.SlotSize) {
		return machigh.Config{}, fmt.Errorf("config: slot_size %s is fixed at %d bytes in this build", c.SlotSize, pktbuf.SlotSize)
	}

	cfg := machigh.DefaultConfig()
	cfg.SSID = c.SSID
	cfg.Channel = c.Channel
	cfg.BeaconInterval = c.BeaconInterval
	cfg.AssociationCheckPeriod = c.AssociationCheckPeriod
	cfg.InactivityTimeout = c.InactivityTimeout
	cfg.MaxRetries = c.MaxRetries
	cfg.NumTXSlots = c.NumTXSlots
	cfg.NumRXSlots = c.NumRXSlots
	if c.QueuePoolLength > 0 {
		cfg.QueuePoolLength = c.QueuePoolLength
	}

	if c.MAC != "" {
		mac, err := net.ParseMAC(c.MAC)
		if err != nil {
			return machigh.Config{}, fmt.Errorf("config: invalid mac %q: %w", c.MAC, err)
		}
		cfg.MAC = mac
	}

	acl, err := c.ACL()
	if err != nil {
		return machigh.Config{}, err
	}
	cfg.ACL = acl

	return cfg, nil
}
