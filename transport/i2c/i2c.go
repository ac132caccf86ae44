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

// Package i2c provides the Linux I2C bus for SE05x secure elements, backed
// by periph.io.
package i2c

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/go-se05x/t1"
)

// DefaultSpeed is the Fast-mode clock. SE05x parts also accept 1 MHz.
const DefaultSpeed = 400 * physic.KiloHertz

// Option configures a Bus.
type Option func(*Bus)

// WithSpeed sets the bus clock. Zero keeps the adapter's current speed.
func WithSpeed(speed physic.Frequency) Option {
	return func(b *Bus) {
		b.speed = speed
	}
}

// Bus implements t1.Bus over a periph.io I2C bus. NACKs reported by the
// kernel are translated to t1.ErrAddressNack and t1.ErrDataNack.
type Bus struct {
	bus    i2c.Bus
	closer io.Closer
	name   string
	speed  physic.Frequency
}

var _ t1.Bus = (*Bus)(nil)

// Open initializes periph.io and opens the named bus, for example "1" or
// "/dev/i2c-1". An empty name opens the first available bus.
func Open(busName string, opts ...Option) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bc, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	b := &Bus{bus: bc, closer: bc, name: busName, speed: DefaultSpeed}
	for _, opt := range opts {
		opt(b)
	}
	if b.speed > 0 {
		// not every adapter supports changing speed
		_ = bc.SetSpeed(b.speed)
	}
	return b, nil
}

// Wrap adapts an already opened periph.io bus. Close does not close it.
func Wrap(bus i2c.Bus) *Bus {
	return &Bus{bus: bus, name: bus.String()}
}

// Read implements t1.Bus.
func (b *Bus) Read(addr uint16, r []byte) error {
	return b.tx(addr, nil, r)
}

// Write implements t1.Bus.
func (b *Bus) Write(addr uint16, w []byte) error {
	return b.tx(addr, w, nil)
}

// WriteRead implements t1.Bus.
func (b *Bus) WriteRead(addr uint16, w, r []byte) error {
	return b.tx(addr, w, r)
}

func (b *Bus) tx(addr uint16, w, r []byte) error {
	if err := b.bus.Tx(addr, w, r); err != nil {
		return classify(fmt.Errorf("i2c %s: %w", b.name, err))
	}
	return nil
}

// Close releases the bus if it was opened by Open.
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	if err := b.closer.Close(); err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", b.name, err)
	}
	return nil
}

// String returns the bus name.
func (b *Bus) String() string {
	return b.name
}
