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

//go:build linux

package i2c

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ZaparooProject/go-se05x/t1"
)

// classify maps the errno Linux I2C adapters use for NACKs. Adapters such
// as i2c-bcm2835 and i2c-designware report an address NACK as EREMOTEIO,
// others as ENXIO. periph.io does not always wrap the errno, so the message
// is matched as well.
func classify(err error) error {
	switch {
	case matches(err, unix.ENXIO), matches(err, unix.EREMOTEIO):
		return fmt.Errorf("%w: %w", t1.ErrAddressNack, err)
	case matches(err, unix.EIO):
		return fmt.Errorf("%w: %w", t1.ErrDataNack, err)
	default:
		return err
	}
}

func matches(err error, errno unix.Errno) bool {
	return errors.Is(err, errno) || strings.Contains(err.Error(), errno.Error())
}
