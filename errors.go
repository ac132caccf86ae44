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
	"path/filepath"
	"runtime"

	"github.com/ZaparooProject/go-se05x/t1"
)

// ErrTlv is returned when a response lacks a required field or a field
// has the wrong shape.
var ErrTlv = errors.New("se05x: malformed response data")

// StatusError is returned when the chip answers with a status word other
// than 0x9000. The response body is not parsed in that case.
type StatusError struct {
	Status StatusWord
}

func (e *StatusError) Error() string {
	return "se05x: chip returned status " + e.Status.String()
}

// IsStatus reports whether err is a StatusError carrying status.
func IsStatus(err error, status StatusWord) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// InternalError is a dispatcher fault such as a truncated response. It
// records where the fault was detected.
type InternalError struct {
	Err  error
	Op   string
	File string
	Line int
}

func (e *InternalError) Error() string {
	msg := fmt.Sprintf("se05x: internal error in %s (%s:%d)", e.Op, e.File, e.Line)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func internalError(op string, err error) error {
	ie := &InternalError{Op: op, Err: err}
	if _, file, line, ok := runtime.Caller(1); ok {
		ie.File = filepath.Base(file)
		ie.Line = line
	}
	return ie
}

// ErrorStatus maps any error returned by this module to a status word.
// Chip status words are returned verbatim, host-side failures map to the
// reserved ranges below 0x3000, and nil maps to StatusSuccess.
func ErrorStatus(err error) StatusWord {
	var (
		statusErr   *StatusError
		internalErr *InternalError
		linkErr     *t1.InternalError
	)
	switch {
	case err == nil:
		return StatusSuccess
	case errors.As(err, &statusErr):
		return statusErr.Status
	case errors.As(err, &internalErr):
		return StatusDispatcherInternal + lineStatus(internalErr.Line)
	case errors.Is(err, ErrTlv):
		return StatusTlvError
	case errors.As(err, &linkErr):
		return StatusT1InternalBase + lineStatus(linkErr.Line)
	case errors.Is(err, t1.ErrUnknown):
		return StatusT1Unknown
	case errors.Is(err, t1.ErrAddressNack):
		return StatusT1AddressNack
	case errors.Is(err, t1.ErrDataNack):
		return StatusT1DataNack
	case errors.Is(err, t1.ErrBadCrc):
		return StatusT1BadCrc
	case errors.Is(err, t1.ErrBadPcb):
		return StatusT1BadPcb
	case errors.Is(err, t1.ErrBadAddress):
		return StatusT1BadAddress
	case errors.Is(err, t1.ErrReceptionBuffer):
		return StatusT1ReceptionBuffer
	case errors.Is(err, t1.ErrTimeout):
		return StatusT1Timeout
	default:
		return StatusUnknownError
	}
}

func lineStatus(line int) StatusWord {
	if line < 0 {
		return 0
	}
	return StatusWord(min(line, maxStatusLine))
}
