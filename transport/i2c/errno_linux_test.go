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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/ZaparooProject/go-se05x/internal/frame"
	"github.com/ZaparooProject/go-se05x/internal/logging"
	"github.com/ZaparooProject/go-se05x/t1"
)

// failingBus returns err from every transaction.
type failingBus struct {
	err   error
	calls int
}

func (*failingBus) String() string {
	return "failing"
}

func (*failingBus) SetSpeed(physic.Frequency) error {
	return nil
}

func (f *failingBus) Tx(uint16, []byte, []byte) error {
	f.calls++
	return f.err
}

// busyBus answers the first nacks reads with EREMOTEIO, like a Raspberry Pi
// adapter talking to a busy secure element, then streams frames.
type busyBus struct {
	pending []byte
	nacks   int
	reads   int
}

func (*busyBus) String() string {
	return "busy"
}

func (*busyBus) SetSpeed(physic.Frequency) error {
	return nil
}

func (b *busyBus) Tx(_ uint16, w, r []byte) error {
	if len(r) == 0 {
		return nil
	}
	b.reads++
	if b.nacks > 0 {
		b.nacks--
		return fmt.Errorf("sysfs-i2c: %w", unix.EREMOTEIO)
	}
	n := copy(r, b.pending)
	b.pending = b.pending[n:]
	return nil
}

var _ i2c.Bus = (*failingBus)(nil)

func TestClassifyErrno(t *testing.T) {
	t.Parallel()

	other := errors.New("bus busy")
	tests := []struct {
		busErr error
		want   error
		name   string
	}{
		{name: "wrapped ENXIO", busErr: fmt.Errorf("sysfs-i2c: %w", unix.ENXIO), want: t1.ErrAddressNack},
		{name: "formatted ENXIO", busErr: fmt.Errorf("sysfs-i2c: %v", unix.ENXIO), want: t1.ErrAddressNack},
		{name: "wrapped EREMOTEIO", busErr: fmt.Errorf("sysfs-i2c: %w", unix.EREMOTEIO), want: t1.ErrAddressNack},
		{name: "formatted EREMOTEIO", busErr: fmt.Errorf("sysfs-i2c: %v", unix.EREMOTEIO), want: t1.ErrAddressNack},
		{name: "EIO", busErr: fmt.Errorf("sysfs-i2c: %w", unix.EIO), want: t1.ErrDataNack},
		{name: "other", busErr: other, want: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bus := Wrap(&failingBus{err: tt.busErr})
			err := bus.Read(0x48, make([]byte, 3))
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "i2c failing")
		})
	}
}

func TestBusyChipIsPolled(t *testing.T) {
	t.Parallel()

	response, err := frame.Build(frame.SEToHost, frame.Information(frame.SeqZero, false), []byte{0x90, 0x00})
	require.NoError(t, err)
	periphBus := &busyBus{nacks: 3, pending: response}
	link := t1.New(Wrap(periphBus), t1.WithClock(t1.NewManualClock()), t1.WithLogger(logging.Discard()))

	buf := make([]byte, 8)
	got, err := link.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, buf[:got.IData])
	assert.Equal(t, 6, periphBus.reads, "three polls then header, data and trailer")
}

func TestBusyChipWriteIsRetried(t *testing.T) {
	t.Parallel()

	periphBus := &failingBus{err: fmt.Errorf("sysfs-i2c: %w", unix.EREMOTEIO)}
	link := t1.New(Wrap(periphBus), t1.WithClock(t1.NewManualClock()), t1.WithLogger(logging.Discard()),
		t1.WithRetryCount(3))

	sender := link.NewFrameSender(2)
	_, err := sender.Write([]byte{0x00, 0x01})
	assert.ErrorIs(t, err, t1.ErrTimeout)
	assert.Equal(t, 3, periphBus.calls)
}
