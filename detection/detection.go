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

// Package detection finds SE05x secure elements on the host's I2C buses.
//
// A probe resynchronizes the T=1 link at each candidate address and asks for
// the ATR, so only addresses known to belong to a secure element should be
// probed.
package detection

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/go-se05x/internal/logging"
	"github.com/ZaparooProject/go-se05x/t1"
	"github.com/ZaparooProject/go-se05x/transport/i2c"
)

// ErrNoDevicesFound is returned when no probed address answered.
var ErrNoDevicesFound = errors.New("detection: no secure element found")

// DefaultProbeRetryCount keeps probes of absent devices short.
const DefaultProbeRetryCount = 8

// BusRef names a bus that can be opened for probing.
type BusRef struct {
	// Open returns the bus and whatever must be closed after probing.
	Open    func() (t1.Bus, io.Closer, error)
	Name    string
	Aliases []string
}

// Candidate is a secure element that answered a probe.
type Candidate struct {
	Bus     string
	Aliases []string
	Atr     t1.Atr
	Address uint16
}

// Path returns the bus and address in the form accepted by IgnorePaths.
func (c Candidate) Path() string {
	return fmt.Sprintf("%s:0x%02X", c.Bus, c.Address)
}

// Options controls detection.
type Options struct {
	// Buses lists the buses to scan. Nil selects SystemBuses.
	Buses func() ([]BusRef, error)
	// Clock drives probe timing. Nil selects the system clock.
	Clock  t1.Clock
	Logger *slog.Logger
	// IgnorePaths skips whole buses by name or single "bus:0xNN" paths.
	IgnorePaths []string
	// Addresses to probe on every bus.
	Addresses []uint16
	// RetryCount bounds block write attempts per probe.
	RetryCount uint32
}

// DefaultOptions probes the default SE05x address on every bus.
func DefaultOptions() *Options {
	return &Options{
		Addresses:  []uint16{t1.DefaultAddress},
		RetryCount: DefaultProbeRetryCount,
	}
}

// SystemBuses returns the I2C buses registered with periph.io.
func SystemBuses() ([]BusRef, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	refs := i2creg.All()
	buses := make([]BusRef, 0, len(refs))
	for _, ref := range refs {
		open := ref.Open
		buses = append(buses, BusRef{
			Name:    ref.Name,
			Aliases: ref.Aliases,
			Open: func() (t1.Bus, io.Closer, error) {
				bc, err := open()
				if err != nil {
					return nil, nil, err
				}
				return i2c.Wrap(bc), bc, nil
			},
		})
	}
	return buses, nil
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.New("detection")
}

// Probe checks for a secure element at addr. It resynchronizes the link and
// returns the ATR from an interface soft reset.
func Probe(bus t1.Bus, addr uint16, opts *Options) (t1.Atr, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	linkOpts := []t1.Option{
		t1.WithAddress(addr),
		t1.WithRetryCount(max(opts.RetryCount, 1)),
		t1.WithCounterBudget(),
		t1.WithLogger(opts.logger()),
	}
	if opts.Clock != nil {
		linkOpts = append(linkOpts, t1.WithClock(opts.Clock))
	}
	link := t1.New(bus, linkOpts...)

	if err := link.Resync(); err != nil {
		return t1.Atr{}, fmt.Errorf("probe 0x%02X: %w", addr, err)
	}
	buf := make([]byte, t1.AtrBufferSize)
	atr, err := link.InterfaceSoftReset(buf)
	if err != nil {
		return t1.Atr{}, fmt.Errorf("probe 0x%02X: %w", addr, err)
	}
	return atr, nil
}

// Detect probes every configured address on every bus.
func Detect(opts *Options) ([]Candidate, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	list := opts.Buses
	if list == nil {
		list = SystemBuses
	}
	buses, err := list()
	if err != nil {
		return nil, err
	}
	logger := opts.logger()

	var found []Candidate
	for _, ref := range buses {
		if busIgnored(ref, opts.IgnorePaths) {
			logger.Debug("skipping ignored bus", "bus", ref.Name)
			continue
		}
		candidates, err := detectBus(ref, opts)
		if err != nil {
			logger.Debug("skipping bus", "bus", ref.Name, "error", err)
			continue
		}
		found = append(found, candidates...)
	}

	if len(found) == 0 {
		return nil, ErrNoDevicesFound
	}
	return found, nil
}

func detectBus(ref BusRef, opts *Options) ([]Candidate, error) {
	bus, closer, err := ref.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open bus %s: %w", ref.Name, err)
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	var found []Candidate
	for _, addr := range opts.Addresses {
		candidate := Candidate{Bus: ref.Name, Aliases: ref.Aliases, Address: addr}
		if IsPathIgnored(candidate.Path(), opts.IgnorePaths) {
			continue
		}
		atr, err := Probe(bus, addr, opts)
		if err != nil {
			continue
		}
		candidate.Atr = atr
		found = append(found, candidate)
	}
	return found, nil
}

func busIgnored(ref BusRef, ignorePaths []string) bool {
	if IsPathIgnored(ref.Name, ignorePaths) {
		return true
	}
	for _, alias := range ref.Aliases {
		if IsPathIgnored(alias, ignorePaths) {
			return true
		}
	}
	return false
}

// IsPathIgnored checks if a bus or device path should be ignored.
// Supports exact path matching and normalized path comparison.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalizedDevice := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if devicePath == ignorePath || normalizedDevice == normalizedPath(ignorePath) {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
