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

package detection

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-se05x/internal/logging"
	"github.com/ZaparooProject/go-se05x/t1"
)

func testOptions(buses ...BusRef) *Options {
	opts := DefaultOptions()
	opts.Clock = t1.NewManualClock()
	opts.Logger = logging.Discard()
	opts.Buses = func() ([]BusRef, error) { return buses, nil }
	return opts
}

type countingCloser struct {
	closed int
}

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func simulatedRef(name string, bus t1.Bus, closer *countingCloser) BusRef {
	return BusRef{
		Name: name,
		Open: func() (t1.Bus, io.Closer, error) {
			if closer == nil {
				return bus, nil, nil
			}
			return bus, closer, nil
		},
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	atr, err := Probe(t1.NewSimulatedChip(nil, nil), t1.DefaultAddress, testOptions())
	require.NoError(t, err)
	assert.Equal(t, uint16(1000), atr.BWT)
	assert.Equal(t, "JCOP4 ATPO", string(atr.HistoricalBytes))
}

func TestProbeAbsent(t *testing.T) {
	t.Parallel()

	_, err := Probe(t1.NewSimulatedBus(), 0x30, testOptions())
	assert.ErrorIs(t, err, t1.ErrTimeout)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	chipCloser := &countingCloser{}
	emptyCloser := &countingCloser{}
	ignoredCloser := &countingCloser{}
	opts := testOptions(
		simulatedRef("I2C0", t1.NewSimulatedBus(), emptyCloser),
		simulatedRef("I2C1", t1.NewSimulatedChip(nil, nil), chipCloser),
		simulatedRef("I2C2", t1.NewSimulatedChip(nil, nil), ignoredCloser),
		BusRef{Name: "broken", Open: func() (t1.Bus, io.Closer, error) {
			return nil, nil, errors.New("permission denied")
		}},
	)
	opts.IgnorePaths = []string{"i2c2"}

	found, err := Detect(opts)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "I2C1", found[0].Bus)
	assert.Equal(t, "I2C1:0x48", found[0].Path())
	assert.Equal(t, uint8(2), found[0].Atr.PLID)

	assert.Equal(t, 1, chipCloser.closed)
	assert.Equal(t, 1, emptyCloser.closed)
	assert.Zero(t, ignoredCloser.closed, "ignored bus is never opened")
}

func TestDetectIgnoredAddress(t *testing.T) {
	t.Parallel()

	bus := t1.NewSimulatedChip(nil, nil)
	opts := testOptions(simulatedRef("I2C1", bus, nil))
	opts.IgnorePaths = []string{"I2C1:0x48"}

	_, err := Detect(opts)
	assert.ErrorIs(t, err, ErrNoDevicesFound)
	assert.Zero(t, bus.Writes())
}

func TestDetectListError(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Buses = func() ([]BusRef, error) { return nil, errors.New("no host") }
	_, err := Detect(opts)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoDevicesFound)
}

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		devicePath  string
		ignorePaths []string
		expected    bool
	}{
		{name: "empty ignore list", devicePath: "/dev/i2c-1", ignorePaths: []string{}, expected: false},
		{name: "empty device path", devicePath: "", ignorePaths: []string{"/dev/i2c-1"}, expected: false},
		{name: "exact match", devicePath: "/dev/i2c-1", ignorePaths: []string{"/dev/i2c-1"}, expected: true},
		{name: "case insensitive", devicePath: "I2C1:0x48", ignorePaths: []string{"i2c1:0X48"}, expected: true},
		{name: "unclean path", devicePath: "/dev/i2c-1", ignorePaths: []string{"/dev//i2c-1"}, expected: true},
		{name: "empty entries skipped", devicePath: "/dev/i2c-1", ignorePaths: []string{""}, expected: false},
		{name: "different bus", devicePath: "/dev/i2c-1", ignorePaths: []string{"/dev/i2c-2"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := IsPathIgnored(tt.devicePath, tt.ignorePaths)
			if result != tt.expected {
				t.Errorf("IsPathIgnored(%q, %v) = %v, want %v",
					tt.devicePath, tt.ignorePaths, result, tt.expected)
			}
		})
	}
}
