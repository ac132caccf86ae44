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

// Package t1 implements the T=1 over I2C block protocol spoken by SE05x
// secure elements (NXP UM11225).
//
// A Link owns the bus handle, the send and receive sequence bits and the
// timing parameters negotiated from the ATR. It is not safe for concurrent
// use.
package t1

import (
	"time"
)

// Bus is the I2C capability consumed by the link. Implementations report a
// NACK on the address byte by wrapping ErrAddressNack and a NACK on a data
// byte by wrapping ErrDataNack.
type Bus interface {
	// Read fills r from the device at addr.
	Read(addr uint16, r []byte) error
	// Write sends w to the device at addr.
	Write(addr uint16, w []byte) error
	// WriteRead sends w then reads r in a single transaction.
	WriteRead(addr uint16, w, r []byte) error
}

// Clock supplies blocking delays and the time source for the receive budget.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}
