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

package i2c

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/ZaparooProject/go-se05x/internal/logging"
	"github.com/ZaparooProject/go-se05x/t1"
)

func TestBusTransactions(t *testing.T) {
	t.Parallel()

	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x48, W: []byte{0x5A, 0xC0, 0x00}},
			{Addr: 0x48, R: []byte{0xA5, 0xE0, 0x00}},
			{Addr: 0x48, W: []byte{0x01}, R: []byte{0x02, 0x03}},
		},
		DontPanic: true,
	}
	bus := Wrap(playback)

	require.NoError(t, bus.Write(0x48, []byte{0x5A, 0xC0, 0x00}))
	r := make([]byte, 3)
	require.NoError(t, bus.Read(0x48, r))
	assert.Equal(t, []byte{0xA5, 0xE0, 0x00}, r)
	r = make([]byte, 2)
	require.NoError(t, bus.WriteRead(0x48, []byte{0x01}, r))
	assert.Equal(t, []byte{0x02, 0x03}, r)

	require.NoError(t, bus.Close())
	require.NoError(t, playback.Close())
}

func TestBusUnexpectedTransaction(t *testing.T) {
	t.Parallel()

	playback := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x48, W: []byte{0x01}}},
		DontPanic: true,
	}
	err := Wrap(playback).Write(0x48, []byte{0x02})
	require.Error(t, err)
	assert.False(t, errors.Is(err, t1.ErrAddressNack))
}

func TestLinkResyncOverI2C(t *testing.T) {
	t.Parallel()

	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x48, W: []byte{0x5A, 0xC0, 0x00, 0xFF, 0xFC}},
			{Addr: 0x48, R: []byte{0xA5, 0xE0, 0x00}},
			{Addr: 0x48, R: []byte{0x3F, 0x19}},
		},
		DontPanic: true,
	}
	link := t1.New(Wrap(playback),
		t1.WithClock(t1.NewManualClock()),
		t1.WithLogger(logging.Discard()),
	)

	require.NoError(t, link.Resync())
	require.NoError(t, playback.Close())
}
