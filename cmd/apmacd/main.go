// https://github.com/usbarmory/wlan-ap
//
// Copyright (c) The wlan-ap Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/mkevac/debugcharts"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/usbarmory/wlan-ap/config"
	"github.com/usbarmory/wlan-ap/internal/ethbridge"
	"github.com/usbarmory/wlan-ap/internal/ipc"
	"github.com/usbarmory/wlan-ap/internal/pktbuf"
	"github.com/usbarmory/wlan-ap/machigh"
)

// Cmd is the command line arguments for apmacd.
type Cmd struct {
	ConfigPath string
	DebugAddr  string
}

var cmd Cmd

var rootCmd = &cobra.Command{
	Use:   "apmacd",
	Short: "Upper-MAC control plane for a dual-processor 802.11 access point",
	Run: func(rawCmd *cobra.Command, _ []string) {
		if err := run(cmd); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	rootCmd.Flags().StringVar(&cmd.DebugAddr, "debug-addr", "", "Address to serve runtime goroutine/heap charts on (empty disables)")
	rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Development = false
	zcfg.Level.SetLevel(zap.InfoLevel)

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(cmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.DebugAddr != "" {
		cfg.DebugAddr = cmd.DebugAddr
	}

	mhCfg, err := cfg.MacHighConfig()
	if err != nil {
		return fmt.Errorf("failed to build machigh config: %w", err)
	}

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)

	nic, err := openUplink(ctx, cfg.Uplink, logger)
	if err != nil {
		return fmt.Errorf("failed to open uplink %s: %w", cfg.Uplink, err)
	}
	defer nic.Close()

	arb := pktbuf.NewArbiter(mhCfg.NumTXSlots, mhCfg.NumRXSlots)
	toLow := ipc.NewChannel(ipc.NewMailbox(256))
	fromLow := ipc.NewChannel(ipc.NewMailbox(256))

	high := machigh.New(mhCfg, logger, arb, toLow, fromLow, nic)

	if cfg.DebugAddr != "" {
		wg.Go(func() error {
			srv := &http.Server{Addr: cfg.DebugAddr}
			go func() {
				<-ctx.Done()
				srv.Close()
			}()
			logger.Info("serving debug charts", zap.String("addr", cfg.DebugAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	wg.Go(func() error {
		return high.Run(ctx)
	})
	wg.Go(func() error {
		sig, err := waitInterrupted(ctx)
		if sig != nil {
			logger.Info("caught signal, shutting down", zap.Stringer("signal", sig))
		}
		return err
	})

	return wg.Wait()
}

// openUplink constructs the Ethernet bridge interface, retrying transient
// failures (e.g. the TAP device being momentarily held by a prior
// instance during a restart) with exponential backoff.
func openUplink(ctx context.Context, name string, logger *zap.Logger) (ethbridge.NIC, error) {
	op := func() (ethbridge.NIC, error) {
		mac := make(net.HardwareAddr, 6)
		if _, err := rand.Read(mac); err != nil {
			return nil, backoff.Permanent(err)
		}
		mac[0] = (mac[0] &^ 0x01) | 0x02 // unicast, locally administered

		tap, err := ethbridge.NewTap(name, mac)
		if err != nil {
			logger.Warn("uplink not ready, retrying", zap.Error(err))
			return nil, err
		}
		return tap, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
}

// waitInterrupted blocks until SIGINT/SIGTERM or ctx cancellation.
func waitInterrupted(ctx context.Context) (os.Signal, error) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		return sig, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
