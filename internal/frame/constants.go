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

// Package frame provides the T=1 over I2C block codec used to talk to SE05x
// secure elements: protocol control bytes, CRC-16/X-25 checksums and frame
// construction.
package frame

// Node address bytes, see table 4 of UM11225
const (
	HostToSE = 0x5A // Blocks sent by the host
	SEToHost = 0xA5 // Blocks sent by the secure element
)

// Frame size limits
const (
	HeaderLength  = 3    // NAD + PCB + LEN
	TrailerLength = 2    // CRC-16, little endian
	MaxDataLength = 0xFE // UM11225 2.1.1
	MaxLength     = HeaderLength + MaxDataLength + TrailerLength

	// RBlockLength is the size of a receipt acknowledgment, which never
	// carries data.
	RBlockLength = HeaderLength + TrailerLength
)
