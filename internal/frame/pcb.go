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
	"errors"
	"fmt"
)

// ErrBadPCB is returned when a protocol control byte matches none of the
// I-, R- or S-block layouts.
var ErrBadPCB = errors.New("invalid PCB")

// Seq is the one-bit block sequence number.
type Seq bool

// Sequence bit values. SeqZero is the value after resynchronization.
const (
	SeqZero Seq = false
	SeqOne  Seq = true
)

// Flip returns the other sequence value.
func (s Seq) Flip() Seq {
	return !s
}

func (s Seq) String() string {
	if s {
		return "1"
	}
	return "0"
}

// Kind identifies the block type encoded by a PCB.
type Kind uint8

const (
	// KindInformation carries application data.
	KindInformation Kind = iota
	// KindReceipt acknowledges a chained I-block.
	KindReceipt
	// KindSupervisory carries link control requests and responses.
	KindSupervisory
)

func (k Kind) String() string {
	switch k {
	case KindInformation:
		return "I"
	case KindReceipt:
		return "R"
	case KindSupervisory:
		return "S"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// RError is the error code carried by an R-block.
type RError uint8

// R-block error codes
const (
	RNoError    RError = 0b00
	RCrcError   RError = 0b01
	ROtherError RError = 0b10
)

func (e RError) String() string {
	switch e {
	case RNoError:
		return "no error"
	case RCrcError:
		return "CRC error"
	case ROtherError:
		return "other error"
	default:
		return fmt.Sprintf("RError(%d)", uint8(e))
	}
}

// SBlock is a supervisory block code. A response is its request code with
// bit 5 set.
type SBlock uint8

// Supervisory block codes
const (
	ResyncRequest              SBlock = 0b11000000
	ResyncResponse             SBlock = 0b11100000
	IfsRequest                 SBlock = 0b11000001
	IfsResponse                SBlock = 0b11100001
	AbortRequest               SBlock = 0b11000010
	AbortResponse              SBlock = 0b11100010
	WtxRequest                 SBlock = 0b11000011
	WtxResponse                SBlock = 0b11100011
	InterfaceSoftResetRequest  SBlock = 0b11001111
	InterfaceSoftResetResponse SBlock = 0b11101111
	EndOfApduSessionRequest    SBlock = 0b11000101
	EndOfApduSessionResponse   SBlock = 0b11100101
	SeChipResetRequest         SBlock = 0b11000110
	SeChipResetResponse        SBlock = 0b11100110
	GetAtrRequest              SBlock = 0b11000111
	GetAtrResponse             SBlock = 0b11100111
)

const sBlockResponseBit = 0b00100000

var sBlockNames = map[SBlock]string{
	ResyncRequest:              "ResyncRequest",
	ResyncResponse:             "ResyncResponse",
	IfsRequest:                 "IfsRequest",
	IfsResponse:                "IfsResponse",
	AbortRequest:               "AbortRequest",
	AbortResponse:              "AbortResponse",
	WtxRequest:                 "WtxRequest",
	WtxResponse:                "WtxResponse",
	InterfaceSoftResetRequest:  "InterfaceSoftResetRequest",
	InterfaceSoftResetResponse: "InterfaceSoftResetResponse",
	EndOfApduSessionRequest:    "EndOfApduSessionRequest",
	EndOfApduSessionResponse:   "EndOfApduSessionResponse",
	SeChipResetRequest:         "SeChipResetRequest",
	SeChipResetResponse:        "SeChipResetResponse",
	GetAtrRequest:              "GetAtrRequest",
	GetAtrResponse:             "GetAtrResponse",
}

// Valid reports whether b is one of the known supervisory codes.
func (b SBlock) Valid() bool {
	_, ok := sBlockNames[b]
	return ok
}

// IsResponse reports whether b is the response half of an exchange.
func (b SBlock) IsResponse() bool {
	return b&sBlockResponseBit != 0
}

// Response returns the response code matching the request b.
func (b SBlock) Response() SBlock {
	return b | sBlockResponseBit
}

func (b SBlock) String() string {
	if name, ok := sBlockNames[b]; ok {
		return name
	}
	return fmt.Sprintf("SBlock(0x%02X)", uint8(b))
}

// I-block layout
const (
	iBlockMask     = 0b10011111
	iBlockTemplate = 0b00000000
	iBlockSeq      = 0b01000000
	iBlockMore     = 0b00100000
)

// R-block layout
const (
	rBlockMask      = 0b11101100
	rBlockTemplate  = 0b10000000
	rBlockSeq       = 0b00010000
	rBlockErrorMask = 0b00000011
)

// PCB is a decoded protocol control byte. Only the fields relevant to Kind
// are meaningful: Seq and More for I-blocks, Seq and Err for R-blocks,
// Block for S-blocks.
type PCB struct {
	Kind  Kind
	Seq   Seq
	More  bool
	Err   RError
	Block SBlock
}

// Information builds an I-block PCB.
func Information(seq Seq, more bool) PCB {
	return PCB{Kind: KindInformation, Seq: seq, More: more}
}

// Receipt builds an R-block PCB.
func Receipt(seq Seq, err RError) PCB {
	return PCB{Kind: KindReceipt, Seq: seq, Err: err}
}

// Supervisory builds an S-block PCB.
func Supervisory(block SBlock) PCB {
	return PCB{Kind: KindSupervisory, Block: block}
}

// Encode returns the wire byte for p.
func (p PCB) Encode() byte {
	switch p.Kind {
	case KindInformation:
		pcb := byte(iBlockTemplate)
		if p.More {
			pcb |= iBlockMore
		}
		if p.Seq == SeqOne {
			pcb |= iBlockSeq
		}
		return pcb
	case KindReceipt:
		pcb := byte(rBlockTemplate)
		if p.Seq == SeqOne {
			pcb |= rBlockSeq
		}
		return pcb | byte(p.Err)&rBlockErrorMask
	default:
		return byte(p.Block)
	}
}

// Decode parses a wire PCB. I-block, R-block and S-block layouts are tried
// in that order.
func Decode(value byte) (PCB, error) {
	if value&iBlockMask == iBlockTemplate {
		return Information(value&iBlockSeq != 0, value&iBlockMore != 0), nil
	}

	if value&rBlockMask == rBlockTemplate {
		code := RError(value & rBlockErrorMask)
		if code > ROtherError {
			return PCB{}, fmt.Errorf("%w: 0x%02X has reserved R-block error code", ErrBadPCB, value)
		}
		return Receipt(value&rBlockSeq != 0, code), nil
	}

	if block := SBlock(value); block.Valid() {
		return Supervisory(block), nil
	}

	return PCB{}, fmt.Errorf("%w: 0x%02X", ErrBadPCB, value)
}

func (p PCB) String() string {
	switch p.Kind {
	case KindInformation:
		return fmt.Sprintf("I(seq=%s, more=%t)", p.Seq, p.More)
	case KindReceipt:
		return fmt.Sprintf("R(seq=%s, %s)", p.Seq, p.Err)
	default:
		return fmt.Sprintf("S(%s)", p.Block)
	}
}
