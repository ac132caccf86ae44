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

package se05x

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ZaparooProject/go-se05x/t1"
)

// ErrInvalidOption is returned by New when an option value is rejected.
var ErrInvalidOption = errors.New("se05x: invalid option")

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithAddress sets the I2C address of the secure element.
func WithAddress(addr uint16) Option {
	return func(d *Device) error {
		if addr > 0x7F {
			return fmt.Errorf("%w: address %#x is not a 7-bit address", ErrInvalidOption, addr)
		}
		d.config.Address = addr
		return nil
	}
}

// WithRetryCount sets how many times a block write is attempted.
func WithRetryCount(count uint32) Option {
	return func(d *Device) error {
		if count == 0 {
			return fmt.Errorf("%w: retry count must be at least 1", ErrInvalidOption)
		}
		d.config.RetryCount = count
		return nil
	}
}

// WithClock replaces the system clock, mainly for tests.
func WithClock(clock t1.Clock) Option {
	return func(d *Device) error {
		d.config.Clock = clock
		return nil
	}
}

// WithLogger sets the logger shared by the device and its link.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) error {
		d.config.Logger = logger
		return nil
	}
}

// WithCounterBudget bounds receptions by poll count alone.
func WithCounterBudget() Option {
	return func(d *Device) error {
		d.config.CounterBudget = true
		return nil
	}
}
