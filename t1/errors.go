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
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Transport errors. Each maps to a reserved status word in se05x.ErrorStatus.
var (
	ErrUnknown         = errors.New("t1: unknown error")
	ErrAddressNack     = errors.New("t1: address not acknowledged")
	ErrDataNack        = errors.New("t1: data not acknowledged")
	ErrBadCrc          = errors.New("t1: checksum mismatch")
	ErrBadPcb          = errors.New("t1: unexpected protocol control byte")
	ErrBadAddress      = errors.New("t1: unexpected node address")
	ErrReceptionBuffer = errors.New("t1: reception buffer too small")
	ErrTimeout         = errors.New("t1: block waiting time exceeded")
)

// InternalError is a protocol fault that has no dedicated sentinel. It
// records where the fault was detected.
type InternalError struct {
	Err  error
	Op   string
	File string
	Line int
}

func (e *InternalError) Error() string {
	msg := fmt.Sprintf("t1: internal error in %s (%s:%d)", e.Op, e.File, e.Line)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// internalError tags err with the caller's source location.
func internalError(op string, err error) error {
	ie := &InternalError{Op: op, Err: err}
	if _, file, line, ok := runtime.Caller(1); ok {
		ie.File = filepath.Base(file)
		ie.Line = line
	}
	return ie
}
