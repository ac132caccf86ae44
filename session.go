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
	"crypto/aes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/aead/cmac"
)

// SessionState tracks an AES session handshake.
type SessionState int

// Handshake states.
const (
	SessionIdle SessionState = iota
	SessionChallengeSent
	SessionKeysDerived
	SessionAuthenticated
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionChallengeSent:
		return "challenge sent"
	case SessionKeysDerived:
		return "keys derived"
	case SessionAuthenticated:
		return "authenticated"
	case SessionFailed:
		return "failed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// AESKeySize is the size of static and session keys.
const AESKeySize = 16

// SessionKeys are the SCP03 session keys derived during authentication.
type SessionKeys struct {
	Enc  [AESKeySize]byte
	Mac  [AESKeySize]byte
	Rmac [AESKeySize]byte
}

// Session is an applet session opened with CreateSession.
type Session struct {
	keys  SessionKeys
	ID    SessionID
	state SessionState
}

// NewSession wraps a handle returned by CreateSession.
func NewSession(id SessionID) *Session {
	return &Session{ID: id}
}

// State returns the handshake state.
func (s *Session) State() SessionState {
	return s.state
}

// Keys returns the derived session keys. They are zero until the card
// cryptogram has been checked.
func (s *Session) Keys() SessionKeys {
	return s.keys
}

// Clear wipes the session keys and returns the session to idle.
func (s *Session) Clear() {
	s.keys = SessionKeys{}
	s.state = SessionIdle
}

func (s *Session) fail() {
	s.keys = SessionKeys{}
	s.state = SessionFailed
}

// ErrSessionState is returned when a handshake is attempted on a session
// that already completed or failed one.
var ErrSessionState = errors.New("se05x: session is not idle")

// Key derivation constants (GlobalPlatform SCP03).
const (
	labelCardCryptogram byte = 0x00
	labelHostCryptogram byte = 0x01
	labelSENC           byte = 0x04
	labelSMAC           byte = 0x06
	labelSRMAC          byte = 0x07

	keyLengthBits        uint16 = 0x0080
	cryptogramLengthBits uint16 = 0x0040

	derivationDataLength = 32
	cryptogramLength     = 8
)

// AuthenticateAES128Session runs the SCP03 handshake on session with the
// static key. It returns false with a nil error when the card cryptogram
// does not match, which means the chip holds a different key. rng supplies
// the host challenge; nil selects crypto/rand. The session is in
// SessionChallengeSent while INITIALIZE UPDATE is in flight and ends in
// SessionFailed if any step fails.
func (d *Device) AuthenticateAES128Session(session *Session, key [AESKeySize]byte, rng io.Reader) (bool, error) {
	if session.state != SessionIdle {
		return false, fmt.Errorf("%w: %v", ErrSessionState, session.state)
	}
	if rng == nil {
		rng = rand.Reader
	}

	var hostChallenge [scpChallengeSize]byte
	if _, err := io.ReadFull(rng, hostChallenge[:]); err != nil {
		return false, fmt.Errorf("host challenge: %w", err)
	}

	session.state = SessionChallengeSent
	buf := make([]byte, defaultRunBufSize)
	var update ScpInitializeUpdateResponse
	err := d.RunWithinSession(session.ID, ScpInitializeUpdate{HostChallenge: hostChallenge}, &update, buf)
	if err != nil {
		session.fail()
		return false, fmt.Errorf("initialize update: %w", err)
	}

	keys, err := deriveSessionKeys(key, hostChallenge, update.CardChallenge)
	if err != nil {
		session.fail()
		return false, err
	}
	session.keys = keys
	session.state = SessionKeysDerived

	expected, err := cardCryptogram(keys.Mac, hostChallenge, update.CardChallenge)
	if err != nil {
		session.fail()
		return false, err
	}
	if subtle.ConstantTimeCompare(expected[:], update.CardCryptogram[:]) != 1 {
		d.logger.Warn("card cryptogram mismatch", "session", session.ID)
		session.fail()
		return false, nil
	}

	auth, err := externalAuthenticate(keys.Mac, hostChallenge, update.CardChallenge)
	if err != nil {
		session.fail()
		return false, err
	}
	if err := d.RunWithinSession(session.ID, auth, nil, buf); err != nil {
		session.fail()
		return false, fmt.Errorf("external authenticate: %w", err)
	}
	session.state = SessionAuthenticated
	return true, nil
}

// derivationData builds the SCP03 KDF input for one label.
func derivationData(label byte, lengthBits uint16, host, card [scpChallengeSize]byte) [derivationDataLength]byte {
	var dda [derivationDataLength]byte
	dda[11] = label
	binary.BigEndian.PutUint16(dda[13:15], lengthBits)
	dda[15] = 0x01
	copy(dda[16:24], host[:])
	copy(dda[24:32], card[:])
	return dda
}

func aesCMAC(key [AESKeySize]byte, msg []byte) ([AESKeySize]byte, error) {
	var out [AESKeySize]byte
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return out, fmt.Errorf("aes key: %w", err)
	}
	sum, err := cmac.Sum(msg, block, aes.BlockSize)
	if err != nil {
		return out, fmt.Errorf("cmac: %w", err)
	}
	copy(out[:], sum)
	return out, nil
}

func deriveSessionKeys(key [AESKeySize]byte, host, card [scpChallengeSize]byte) (SessionKeys, error) {
	var keys SessionKeys
	for _, k := range []struct {
		dst   *[AESKeySize]byte
		label byte
	}{
		{&keys.Enc, labelSENC},
		{&keys.Mac, labelSMAC},
		{&keys.Rmac, labelSRMAC},
	} {
		dda := derivationData(k.label, keyLengthBits, host, card)
		derived, err := aesCMAC(key, dda[:])
		if err != nil {
			return SessionKeys{}, fmt.Errorf("derive session key %#x: %w", k.label, err)
		}
		*k.dst = derived
	}
	return keys, nil
}

func cryptogram(label byte, smac [AESKeySize]byte, host, card [scpChallengeSize]byte) ([cryptogramLength]byte, error) {
	var out [cryptogramLength]byte
	dda := derivationData(label, cryptogramLengthBits, host, card)
	sum, err := aesCMAC(smac, dda[:])
	if err != nil {
		return out, err
	}
	copy(out[:], sum[:cryptogramLength])
	return out, nil
}

func cardCryptogram(smac [AESKeySize]byte, host, card [scpChallengeSize]byte) ([cryptogramLength]byte, error) {
	return cryptogram(labelCardCryptogram, smac, host, card)
}

func hostCryptogram(smac [AESKeySize]byte, host, card [scpChallengeSize]byte) ([cryptogramLength]byte, error) {
	return cryptogram(labelHostCryptogram, smac, host, card)
}

// externalAuthenticate builds the EXTERNAL AUTHENTICATE command. The MAC
// chains from a zero ICV over the command header and host cryptogram.
func externalAuthenticate(smac [AESKeySize]byte, host, card [scpChallengeSize]byte) (ScpExternalAuthenticate, error) {
	hc, err := hostCryptogram(smac, host, card)
	if err != nil {
		return ScpExternalAuthenticate{}, err
	}
	msg := make([]byte, 0, aes.BlockSize+5+cryptogramLength)
	msg = append(msg, make([]byte, aes.BlockSize)...)
	msg = append(msg, claSecureChannel, insExternalAuthenticate, p1Default, p2Default, 2*cryptogramLength)
	msg = append(msg, hc[:]...)
	mac, err := aesCMAC(smac, msg)
	if err != nil {
		return ScpExternalAuthenticate{}, err
	}
	cmd := ScpExternalAuthenticate{HostCryptogram: hc}
	copy(cmd.MAC[:], mac[:cryptogramLength])
	return cmd, nil
}
