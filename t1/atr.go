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

package t1

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-se05x/internal/frame"
)

// ErrMalformedAtr is returned by ParseAtr when a field is missing or short.
var ErrMalformedAtr = errors.New("t1: malformed ATR")

// Atr holds the link parameters announced by the chip after an interface
// soft reset. HistoricalBytes aliases the buffer the ATR was parsed from.
type Atr struct {
	HistoricalBytes []byte
	VendorID        [5]byte
	// BWT is the block waiting time in milliseconds.
	BWT uint16
	// IFSC is the maximum information field size of the chip.
	IFSC uint16
	// MCF is the maximum clock frequency in kHz.
	MCF uint16
	// SEGT is the guard time in microseconds.
	SEGT uint16
	// WUT is the wake-up time in microseconds.
	WUT     uint16
	Version uint8
	PLID    uint8
	Config  uint8
	// MPOT is the minimum polling time in milliseconds.
	MPOT uint8
}

// DefaultAtr is the parameter set used when the chip's ATR cannot be parsed.
func DefaultAtr() Atr {
	return Atr{
		Version:  1,
		VendorID: [5]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		IFSC:     frame.MaxDataLength,
		MPOT:     1,
		SEGT:     uint16(DefaultGuardTime / time.Microsecond),
	}
}

// BlockWaitingTime returns BWT as a duration.
func (a Atr) BlockWaitingTime() time.Duration {
	return time.Duration(a.BWT) * time.Millisecond
}

// PollInterval returns MPOT as a duration.
func (a Atr) PollInterval() time.Duration {
	return time.Duration(a.MPOT) * time.Millisecond
}

// GuardTime returns SEGT as a duration.
func (a Atr) GuardTime() time.Duration {
	return time.Duration(a.SEGT) * time.Microsecond
}

const (
	atrFixedLength = 7
	dllpMinLength  = 4
	plpMinLength   = 11
)

// ParseAtr decodes the ATR carried by an interface soft reset response.
// Multi-byte fields are big-endian.
func ParseAtr(data []byte) (Atr, error) {
	var atr Atr
	if len(data) < atrFixedLength {
		return atr, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedAtr, len(data), atrFixedLength)
	}
	atr.Version = data[0]
	copy(atr.VendorID[:], data[1:6])
	dllpLen := int(data[6])
	rem := data[atrFixedLength:]

	if len(rem) < dllpLen || dllpLen < 2 {
		return Atr{}, fmt.Errorf("%w: data link layer parameters length %d", ErrMalformedAtr, dllpLen)
	}
	dllp, rem := rem[:dllpLen], rem[dllpLen:]
	if len(dllp) < dllpMinLength {
		return Atr{}, fmt.Errorf("%w: data link layer parameters hold %d bytes", ErrMalformedAtr, len(dllp))
	}
	atr.BWT = binary.BigEndian.Uint16(dllp[0:2])
	atr.IFSC = binary.BigEndian.Uint16(dllp[2:4])

	if len(rem) < 2 {
		return Atr{}, fmt.Errorf("%w: missing physical layer header", ErrMalformedAtr)
	}
	atr.PLID = rem[0]
	plpLen := int(rem[1])
	rem = rem[2:]
	if len(rem) < plpLen {
		return Atr{}, fmt.Errorf("%w: physical layer parameters length %d", ErrMalformedAtr, plpLen)
	}
	plp, rem := rem[:plpLen], rem[plpLen:]
	if len(plp) < plpMinLength {
		return Atr{}, fmt.Errorf("%w: physical layer parameters hold %d bytes", ErrMalformedAtr, len(plp))
	}
	atr.MCF = binary.BigEndian.Uint16(plp[0:2])
	atr.Config = plp[2]
	atr.MPOT = plp[3]
	// plp[4:7] is reserved
	atr.SEGT = binary.BigEndian.Uint16(plp[7:9])
	atr.WUT = binary.BigEndian.Uint16(plp[9:11])

	if len(rem) == 0 {
		return Atr{}, fmt.Errorf("%w: missing historical bytes length", ErrMalformedAtr)
	}
	hbLen := int(rem[0])
	rem = rem[1:]
	if len(rem) < hbLen {
		return Atr{}, fmt.Errorf("%w: historical bytes length %d", ErrMalformedAtr, hbLen)
	}
	atr.HistoricalBytes = rem[:hbLen:hbLen]
	return atr, nil
}
