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
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/moov-io/bertlv"
	"github.com/skythen/apdu"
)

// Command is anything that can be serialized as a command APDU. Len must
// report exactly the number of bytes WriteTo produces.
type Command interface {
	Len() int
	WriteTo(w io.Writer) (int64, error)
}

// Response parses the body of a successful response, status word
// excluded. Implementations may keep slices of data, which aliases the
// buffer passed to Device.Run.
type Response interface {
	UnmarshalResponse(data []byte) error
}

// NeMax requests the largest response the encoding allows: 256 bytes in
// the short form, 65536 in the extended form.
const NeMax = -1

const (
	maxShortData = 255
	maxShortNe   = 256
	maxExtNe     = 65536
)

// APDU is a raw command APDU. The short or extended form is chosen from
// the data length and Ne.
type APDU struct {
	Data []byte
	Ne   int
	Cla  byte
	Ins  byte
	P1   byte
	P2   byte
}

// Bytes encodes the command.
func (a APDU) Bytes() ([]byte, error) {
	ne := a.Ne
	if ne == NeMax {
		ne = maxShortNe
		if len(a.Data) > maxShortData {
			ne = maxExtNe
		}
	}
	capdu := apdu.Capdu{Cla: a.Cla, Ins: a.Ins, P1: a.P1, P2: a.P2, Data: a.Data, Ne: ne}
	raw, err := capdu.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode APDU %02X%02X: %w", a.Cla, a.Ins, err)
	}
	return raw, nil
}

// Len implements Command. It returns 0 when the APDU cannot be encoded.
func (a APDU) Len() int {
	raw, err := a.Bytes()
	if err != nil {
		return 0
	}
	return len(raw)
}

// WriteTo implements Command.
func (a APDU) WriteTo(w io.Writer) (int64, error) {
	raw, err := a.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(raw)
	return int64(n), err
}

// RawResponse keeps the response body as-is.
type RawResponse struct {
	Data []byte
}

// UnmarshalResponse implements Response.
func (r *RawResponse) UnmarshalResponse(data []byte) error {
	r.Data = data
	return nil
}

// apduBuilder is implemented by catalogue commands, which all reduce to a
// single APDU.
type apduBuilder interface {
	APDU() (APDU, error)
}

func builderLen(c apduBuilder) int {
	a, err := c.APDU()
	if err != nil {
		return 0
	}
	return a.Len()
}

func builderWriteTo(c apduBuilder, w io.Writer) (int64, error) {
	a, err := c.APDU()
	if err != nil {
		return 0, err
	}
	return a.WriteTo(w)
}

// commandBytes serializes any Command into memory.
func commandBytes(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(cmd.Len())
	if _, err := cmd.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tagString(tag byte) string {
	return fmt.Sprintf("%02X", tag)
}

func tlv(tag byte, value []byte) bertlv.TLV {
	return bertlv.TLV{Tag: tagString(tag), Value: value}
}

func encodeTLVs(packets ...bertlv.TLV) ([]byte, error) {
	raw, err := bertlv.Encode(packets)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTlv, err)
	}
	return raw, nil
}

// findTLV returns the value of the first top-level object tagged tag,
// skipping any others.
func findTLV(data []byte, tag byte) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTlv, err)
	}
	want := tagString(tag)
	for _, p := range packets {
		if strings.EqualFold(p.Tag, want) {
			return p.Value, nil
		}
	}
	return nil, fmt.Errorf("%w: tag %s not found", ErrTlv, want)
}

// findFixedTLV is findTLV with an exact length check.
func findFixedTLV(data []byte, tag byte, size int) ([]byte, error) {
	value, err := findTLV(data, tag)
	if err != nil {
		return nil, err
	}
	if len(value) != size {
		return nil, fmt.Errorf("%w: tag %s has %d bytes, want %d", ErrTlv, tagString(tag), len(value), size)
	}
	return value, nil
}
