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

package frame

import (
	"encoding/binary"

	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_X_25)

// Checksum computes the CRC-16/X-25 of the concatenation of parts.
func Checksum(parts ...[]byte) uint16 {
	crc := crc16.Init(crcTable)
	for _, part := range parts {
		crc = crc16.Update(crc, part, crcTable)
	}
	return crc16.Complete(crc, crcTable)
}

// ChecksumBytes returns the checksum of parts in wire order (little endian).
func ChecksumBytes(parts ...[]byte) [TrailerLength]byte {
	var trailer [TrailerLength]byte
	binary.LittleEndian.PutUint16(trailer[:], Checksum(parts...))
	return trailer
}

// ValidateChecksum reports whether trailer is the wire checksum of the
// header and data.
func ValidateChecksum(header, data, trailer []byte) bool {
	if len(trailer) != TrailerLength {
		return false
	}
	return binary.LittleEndian.Uint16(trailer) == Checksum(header, data)
}
