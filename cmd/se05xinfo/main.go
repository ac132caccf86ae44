// go-se05x
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-se05x.
//
// go-se05x is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-se05x is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-se05x; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Command se05xinfo selects the IoT applet on an SE05x and prints what the
// chip reports about itself.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	se05x "github.com/ZaparooProject/go-se05x"
	"github.com/ZaparooProject/go-se05x/detection"
	"github.com/ZaparooProject/go-se05x/internal/logging"
	"github.com/ZaparooProject/go-se05x/t1"
	"github.com/ZaparooProject/go-se05x/transport/i2c"
)

type config struct {
	busName *string
	address *uint
	random  *uint
	retries *uint
	debug   *bool
}

// validate rejects flag values that do not fit the device options.
func validate(cfg *config) error {
	if *cfg.address > 0x7F {
		return fmt.Errorf("address 0x%X is not a 7-bit I2C address", *cfg.address)
	}
	if *cfg.retries == 0 || *cfg.retries > math.MaxUint32 {
		return fmt.Errorf("retries must be between 1 and %d, got %d", uint32(math.MaxUint32), *cfg.retries)
	}
	if *cfg.random > math.MaxUint16-8 {
		return fmt.Errorf("random length %d too large", *cfg.random)
	}
	return nil
}

func parseFlags() *config {
	cfg := &config{
		busName: flag.String("bus", "",
			"I2C bus name (e.g., 1 or /dev/i2c-1). Leave empty for auto-detection."),
		address: flag.Uint("addr", uint(t1.DefaultAddress), "7-bit I2C address of the secure element"),
		random:  flag.Uint("random", 16, "Number of random bytes to request (0 to skip)"),
		retries: flag.Uint("retries", uint(t1.DefaultRetryCount), "Block write attempts"),
		debug:   flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Parse()
	return cfg
}

func newLogger(cfg *config) *slog.Logger {
	return logging.NewWithWriter(os.Stderr, "se05xinfo", *cfg.debug)
}

// openBus opens the named bus, or the first bus where a secure element
// answers when no name is given.
func openBus(cfg *config, logger *slog.Logger) (*i2c.Bus, error) {
	name := *cfg.busName
	if name == "" {
		_, _ = fmt.Println("Auto-detecting SE05x devices...")
		opts := detection.DefaultOptions()
		opts.Addresses = []uint16{uint16(*cfg.address)}
		opts.Logger = logger
		found, err := detection.Detect(opts)
		if err != nil {
			return nil, fmt.Errorf("auto-detection failed: %w", err)
		}
		name = found[0].Bus
		_, _ = fmt.Printf("Found secure element at %s (%s)\n", found[0].Path(), found[0].Atr.HistoricalBytes)
	}

	_, _ = fmt.Printf("Opening bus: %s\n", name)
	bus, err := i2c.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open bus: %w", err)
	}
	return bus, nil
}

func printMemory(device *se05x.Device, buf []byte) {
	for _, pool := range []se05x.Memory{
		se05x.MemoryPersistent, se05x.MemoryTransientReset, se05x.MemoryTransientDeselect,
	} {
		var free se05x.GetFreeMemoryResponse
		if err := device.Run(se05x.GetFreeMemory{Memory: pool}, &free, buf); err != nil {
			_, _ = fmt.Printf("Free memory (%s): %v\n", pool, err)
			continue
		}
		_, _ = fmt.Printf("Free memory (%s): %d bytes\n", pool, free.Available)
	}
}

func printRandom(device *se05x.Device, n uint, buf []byte) {
	if n == 0 {
		return
	}
	var random se05x.GetRandomResponse
	if err := device.Run(se05x.GetRandom{Length: uint16(n)}, &random, buf); err != nil {
		_, _ = fmt.Printf("Random: %v\n", err)
		return
	}
	_, _ = fmt.Printf("Random: %s\n", hex.EncodeToString(random.Data))
}

func printTimestamp(device *se05x.Device, buf []byte) {
	var ts se05x.GetTimestampResponse
	if err := device.Run(se05x.GetTimestamp{}, &ts, buf); err != nil {
		_, _ = fmt.Printf("Timestamp: %v\n", err)
		return
	}
	_, _ = fmt.Printf("Timestamp: %s\n", hex.EncodeToString(ts.Timestamp))
}

func run() int {
	cfg := parseFlags()
	logger := newLogger(cfg)

	if err := validate(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		return 2
	}

	bus, err := openBus(cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	device, err := se05x.New(bus,
		se05x.WithAddress(uint16(*cfg.address)),
		se05x.WithRetryCount(uint32(*cfg.retries)),
		se05x.WithLogger(logger),
	)
	if err != nil {
		_ = bus.Close()
		_, _ = fmt.Fprintf(os.Stderr, "Failed to create device: %v\n", err)
		return 1
	}
	defer func() { _ = device.Close() }()

	applet, err := device.Enable()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to enable secure element: %v (status %v)\n",
			err, se05x.ErrorStatus(err))
		return 1
	}
	_, _ = fmt.Println(applet)

	buf := make([]byte, max(int(*cfg.random)+16, 64))
	printMemory(device, buf)
	printTimestamp(device, buf)
	printRandom(device, *cfg.random, buf)
	return 0
}

func main() {
	os.Exit(run())
}
