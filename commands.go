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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
)

// Instruction bytes.
const (
	claNoSecureMessaging byte = 0x80
	claSecureChannel     byte = 0x84

	insMgmt                 byte = 0x04
	insProcessSession       byte = 0x05
	insInitializeUpdate     byte = 0x50
	insExternalAuthenticate byte = 0x82

	p1Default byte = 0x00

	p2Default       byte = 0x00
	p2SessionCreate byte = 0x1B
	p2SessionClose  byte = 0x1C
	p2Version       byte = 0x20
	p2Memory        byte = 0x22
	p2Time          byte = 0x3D
	p2Random        byte = 0x49

	tagSessionID byte = 0x10
	tagValue     byte = 0x41
)

const scpChallengeSize = 8

// ObjectID identifies a secure object on the chip.
type ObjectID [4]byte

// Reserved object identifiers.
var (
	ObjectIDInvalid       = ObjectID{0x00, 0x00, 0x00, 0x00}
	ObjectIDTransport     = ObjectID{0x7F, 0xFF, 0x02, 0x00}
	ObjectIDKpEcKeyUser   = ObjectID{0x7F, 0xFF, 0x02, 0x01}
	ObjectIDKpEcKeyImport = ObjectID{0x7F, 0xFF, 0x02, 0x02}
	ObjectIDFeature       = ObjectID{0x7F, 0xFF, 0x02, 0x04}
	ObjectIDFactoryReset  = ObjectID{0x7F, 0xFF, 0x02, 0x05}
	ObjectIDUniqueID      = ObjectID{0x7F, 0xFF, 0x02, 0x06}
	ObjectIDPlatformSCP   = ObjectID{0x7F, 0xFF, 0x02, 0x07}
	ObjectIDI2CMAccess    = ObjectID{0x7F, 0xFF, 0x02, 0x08}
	ObjectIDRestrict      = ObjectID{0x7F, 0xFF, 0x02, 0x0A}
)

func (o ObjectID) String() string {
	return hex.EncodeToString(o[:])
}

// SessionID is the handle returned by CreateSession.
type SessionID [8]byte

func (s SessionID) String() string {
	return hex.EncodeToString(s[:])
}

// Memory selects the memory pool for GetFreeMemory.
type Memory byte

// Memory pools.
const (
	MemoryPersistent        Memory = 0x01
	MemoryTransientReset    Memory = 0x02
	MemoryTransientDeselect Memory = 0x03
)

func (m Memory) String() string {
	switch m {
	case MemoryPersistent:
		return "persistent"
	case MemoryTransientReset:
		return "transient (reset)"
	case MemoryTransientDeselect:
		return "transient (deselect)"
	default:
		return fmt.Sprintf("memory(0x%02X)", byte(m))
	}
}

func mgmt(p2 byte, data []byte, ne int) APDU {
	return APDU{Cla: claNoSecureMessaging, Ins: insMgmt, P1: p1Default, P2: p2, Data: data, Ne: ne}
}

// CreateSession opens a session authenticated by the credential stored
// under Object.
type CreateSession struct {
	Object ObjectID
}

// APDU returns the encoded form.
func (c CreateSession) APDU() (APDU, error) {
	data, err := encodeTLVs(tlv(tagValue, c.Object[:]))
	if err != nil {
		return APDU{}, err
	}
	return mgmt(p2SessionCreate, data, 12), nil
}

// Len implements Command.
func (c CreateSession) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c CreateSession) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }

// CreateSessionResponse carries the new session handle.
type CreateSessionResponse struct {
	SessionID SessionID
}

// UnmarshalResponse implements Response.
func (r *CreateSessionResponse) UnmarshalResponse(data []byte) error {
	value, err := findFixedTLV(data, tagValue, len(r.SessionID))
	if err != nil {
		return err
	}
	copy(r.SessionID[:], value)
	return nil
}

// CloseSession closes the session it is sent within.
type CloseSession struct{}

// APDU returns the encoded form.
func (CloseSession) APDU() (APDU, error) {
	return mgmt(p2SessionClose, nil, 0), nil
}

// Len implements Command.
func (c CloseSession) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c CloseSession) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }

// GetVersion reads the applet version record.
type GetVersion struct{}

// APDU returns the encoded form.
func (GetVersion) APDU() (APDU, error) {
	return mgmt(p2Version, nil, 11), nil
}

// Len implements Command.
func (c GetVersion) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c GetVersion) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }

// GetVersionResponse wraps the version record.
type GetVersionResponse struct {
	Version VersionInfo
}

// UnmarshalResponse implements Response.
func (r *GetVersionResponse) UnmarshalResponse(data []byte) error {
	value, err := findTLV(data, tagValue)
	if err != nil {
		return err
	}
	return r.Version.UnmarshalResponse(value)
}

// GetTimestamp reads the chip's monotonic timestamp.
type GetTimestamp struct{}

// APDU returns the encoded form.
func (GetTimestamp) APDU() (APDU, error) {
	return mgmt(p2Time, nil, 20), nil
}

// Len implements Command.
func (c GetTimestamp) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c GetTimestamp) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }

// TimestampLength is the size of the chip timestamp.
const TimestampLength = 12

// GetTimestampResponse holds the 12-byte timestamp. The slice aliases the
// response buffer.
type GetTimestampResponse struct {
	Timestamp []byte
}

// UnmarshalResponse implements Response.
func (r *GetTimestampResponse) UnmarshalResponse(data []byte) error {
	value, err := findFixedTLV(data, tagValue, TimestampLength)
	if err != nil {
		return err
	}
	r.Timestamp = value
	return nil
}

// GetFreeMemory reports the free bytes of a memory pool.
type GetFreeMemory struct {
	Memory Memory
}

// APDU returns the encoded form.
func (c GetFreeMemory) APDU() (APDU, error) {
	data, err := encodeTLVs(tlv(tagValue, []byte{byte(c.Memory)}))
	if err != nil {
		return APDU{}, err
	}
	return mgmt(p2Memory, data, 6), nil
}

// Len implements Command.
func (c GetFreeMemory) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c GetFreeMemory) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }

// GetFreeMemoryResponse holds the free byte count.
type GetFreeMemoryResponse struct {
	Available uint16
}

// UnmarshalResponse implements Response.
func (r *GetFreeMemoryResponse) UnmarshalResponse(data []byte) error {
	value, err := findFixedTLV(data, tagValue, 2)
	if err != nil {
		return err
	}
	r.Available = binary.BigEndian.Uint16(value)
	return nil
}

// GetRandom asks the chip for Length random bytes.
type GetRandom struct {
	Length uint16
}

// APDU returns the encoded form.
func (c GetRandom) APDU() (APDU, error) {
	data, err := encodeTLVs(tlv(tagValue, binary.BigEndian.AppendUint16(nil, c.Length)))
	if err != nil {
		return APDU{}, err
	}
	return mgmt(p2Random, data, NeMax), nil
}

// Len implements Command.
func (c GetRandom) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c GetRandom) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }

// GetRandomResponse holds the random bytes. The slice aliases the response
// buffer.
type GetRandomResponse struct {
	Data []byte
}

// UnmarshalResponse implements Response.
func (r *GetRandomResponse) UnmarshalResponse(data []byte) error {
	value, err := findTLV(data, tagValue)
	if err != nil {
		return err
	}
	r.Data = value
	return nil
}

// ScpInitializeUpdate starts an SCP03 handshake with a host challenge.
type ScpInitializeUpdate struct {
	HostChallenge [scpChallengeSize]byte
}

// APDU returns the encoded form.
func (c ScpInitializeUpdate) APDU() (APDU, error) {
	return APDU{
		Cla:  claNoSecureMessaging,
		Ins:  insInitializeUpdate,
		P1:   p1Default,
		P2:   p2Default,
		Data: c.HostChallenge[:],
		Ne:   256,
	}, nil
}

// Len implements Command.
func (c ScpInitializeUpdate) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c ScpInitializeUpdate) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }

// scpInitializeUpdateLength is the minimum INITIALIZE UPDATE response size.
const scpInitializeUpdateLength = 10 + 3 + scpChallengeSize + scpChallengeSize

// ScpInitializeUpdateResponse is the card's answer to INITIALIZE UPDATE.
type ScpInitializeUpdateResponse struct {
	KeyDiversification [10]byte
	KeyInfo            [3]byte
	CardChallenge      [scpChallengeSize]byte
	CardCryptogram     [scpChallengeSize]byte
}

// UnmarshalResponse implements Response. Trailing bytes are ignored.
func (r *ScpInitializeUpdateResponse) UnmarshalResponse(data []byte) error {
	if len(data) < scpInitializeUpdateLength {
		return fmt.Errorf("%w: INITIALIZE UPDATE response has %d bytes, want %d",
			ErrTlv, len(data), scpInitializeUpdateLength)
	}
	n := copy(r.KeyDiversification[:], data)
	n += copy(r.KeyInfo[:], data[n:])
	n += copy(r.CardChallenge[:], data[n:])
	copy(r.CardCryptogram[:], data[n:])
	return nil
}

// ScpExternalAuthenticate completes an SCP03 handshake.
type ScpExternalAuthenticate struct {
	HostCryptogram [scpChallengeSize]byte
	MAC            [scpChallengeSize]byte
}

// APDU returns the encoded form.
func (c ScpExternalAuthenticate) APDU() (APDU, error) {
	data := make([]byte, 0, 2*scpChallengeSize)
	data = append(data, c.HostCryptogram[:]...)
	data = append(data, c.MAC[:]...)
	return APDU{
		Cla:  claSecureChannel,
		Ins:  insExternalAuthenticate,
		P1:   p1Default,
		P2:   p2Default,
		Data: data,
	}, nil
}

// Len implements Command.
func (c ScpExternalAuthenticate) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c ScpExternalAuthenticate) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }

// ProcessSessionCmd wraps Command so that it runs within a session.
type ProcessSessionCmd struct {
	Command   Command
	SessionID SessionID
}

// APDU returns the encoded envelope.
func (c ProcessSessionCmd) APDU() (APDU, error) {
	if c.Command == nil {
		return APDU{}, fmt.Errorf("%w: no command to wrap", ErrTlv)
	}
	inner, err := commandBytes(c.Command)
	if err != nil {
		return APDU{}, fmt.Errorf("encode wrapped command: %w", err)
	}
	if len(inner) > math.MaxUint16 {
		return APDU{}, fmt.Errorf("%w: wrapped command of %d bytes", ErrTlv, len(inner))
	}
	data, err := encodeTLVs(tlv(tagSessionID, c.SessionID[:]), tlv(tagValue, inner))
	if err != nil {
		return APDU{}, err
	}
	return APDU{
		Cla:  claNoSecureMessaging,
		Ins:  insProcessSession,
		P1:   p1Default,
		P2:   p2Default,
		Data: data,
		Ne:   NeMax,
	}, nil
}

// Len implements Command.
func (c ProcessSessionCmd) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c ProcessSessionCmd) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }
