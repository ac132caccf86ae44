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
	"fmt"
)

// Append appends a complete block (header, data and checksum) to dst.
func Append(dst []byte, nad byte, pcb PCB, data []byte) ([]byte, error) {
	if len(data) > MaxDataLength {
		return dst, fmt.Errorf("block data of %d bytes exceeds %d", len(data), MaxDataLength)
	}
	start := len(dst)
	dst = append(dst, nad, pcb.Encode(), byte(len(data)))
	dst = append(dst, data...)
	trailer := ChecksumBytes(dst[start:])
	return append(dst, trailer[:]...), nil
}

// Build returns a complete block.
func Build(nad byte, pcb PCB, data []byte) ([]byte, error) {
	return Append(make([]byte, 0, HeaderLength+len(data)+TrailerLength), nad, pcb, data)
}

// Block is a parsed frame.
type Block struct {
	Data []byte
	PCB  PCB
	NAD  byte
}

// Parse validates and decodes a complete block held in buf. Data aliases buf.
func Parse(buf []byte) (Block, error) {
	if len(buf) < HeaderLength+TrailerLength {
		return Block{}, fmt.Errorf("block too short: %d bytes", len(buf))
	}
	length := int(buf[2])
	if length > MaxDataLength || len(buf) != HeaderLength+length+TrailerLength {
		return Block{}, fmt.Errorf("block length %d does not match %d received bytes", length, len(buf))
	}
	header := buf[:HeaderLength]
	data := buf[HeaderLength : HeaderLength+length]
	if !ValidateChecksum(header, data, buf[HeaderLength+length:]) {
		return Block{}, fmt.Errorf("block checksum mismatch")
	}
	pcb, err := Decode(buf[1])
	if err != nil {
		return Block{}, err
	}
	return Block{NAD: buf[0], PCB: pcb, Data: data}, nil
}
