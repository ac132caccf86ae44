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
	"errors"
	"testing"
	"time"

	"github.com/moov-io/bertlv"
	"github.com/skythen/apdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-se05x/internal/logging"
	"github.com/ZaparooProject/go-se05x/t1"
)

func newTestDevice(t *testing.T, bus t1.Bus, opts ...Option) (*Device, *t1.ManualClock) {
	t.Helper()
	clock := t1.NewManualClock()
	opts = append([]Option{WithClock(clock), WithLogger(logging.Discard())}, opts...)
	device, err := New(bus, opts...)
	require.NoError(t, err)
	return device, clock
}

func selectCommand() []byte {
	return append(append([]byte{0x00, 0xA4, 0x04, 0x00, 0x10}, AppletID...), 0x07)
}

// appletChip answers SELECT with record and everything else with answer.
func appletChip(record []byte, answer func(command []byte) []byte) *t1.SimulatedBus {
	return t1.NewSimulatedChip(nil, func(command []byte) []byte {
		if bytes.Equal(command, selectCommand()) {
			return record
		}
		if answer == nil {
			return []byte{0x6D, 0x00}
		}
		return answer(command)
	})
}

func TestEnable(t *testing.T) {
	t.Parallel()

	bus := appletChip([]byte{0x07, 0x02, 0x00, 0x3F, 0xFF, 0x01, 0x00, 0x90, 0x00}, nil)
	device, _ := newTestDevice(t, bus)

	info, err := device.Enable()
	require.NoError(t, err)
	assert.Equal(t, AppletInfo{
		Major:          7,
		Minor:          2,
		Patch:          0,
		Config:         ConfigAll,
		SecureBoxMajor: 1,
		SecureBoxMinor: 0,
	}, info)

	cached, ok := device.Applet()
	require.True(t, ok)
	assert.Equal(t, info, cached)

	written := bus.Written()
	require.GreaterOrEqual(t, len(written), 3)
	assert.Equal(t, []byte{0x5A, 0xC0, 0x00, 0xFF, 0xFC}, written[0], "resync first")
	assert.Equal(t, []byte{0x5A, 0xCF, 0x00}, written[1][:3], "soft reset second")
	require.Len(t, bus.Commands(), 1)
	assert.Equal(t, selectCommand(), bus.Commands()[0])
	assert.Equal(t, 0, bus.HostSeqErrors())

	assert.Equal(t, time.Second, device.Link().BlockWaitingTime())
}

func TestEnableFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		check  func(t *testing.T, err error)
		name   string
		record []byte
	}{
		{
			name:   "status word",
			record: []byte{0x6F, 0x00},
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, IsStatus(err, StatusNoPreciseDiagnosis))
				assert.Equal(t, StatusNoPreciseDiagnosis, ErrorStatus(err))
			},
		},
		{
			name:   "short record",
			record: []byte{0x07, 0x02, 0x90, 0x00},
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.ErrorIs(t, err, ErrTlv)
				assert.Equal(t, StatusTlvError, ErrorStatus(err))
			},
		},
		{
			name:   "record larger than the buffer",
			record: []byte{0x07, 0x02, 0x00, 0x3F, 0xFF, 0x01, 0x00, 0xAA, 0x90, 0x00},
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.ErrorIs(t, err, t1.ErrReceptionBuffer)
				assert.Equal(t, StatusT1ReceptionBuffer, ErrorStatus(err))
			},
		},
		{
			name:   "missing status word",
			record: []byte{0x90},
			check: func(t *testing.T, err error) {
				t.Helper()
				var ie *InternalError
				require.ErrorAs(t, err, &ie)
				status := ErrorStatus(err)
				assert.GreaterOrEqual(t, status, StatusDispatcherInternal)
				assert.LessOrEqual(t, status, StatusDispatcherInternal+maxStatusLine)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, _ := newTestDevice(t, appletChip(tt.record, nil))
			_, err := device.Enable()
			require.Error(t, err)
			tt.check(t, err)
			_, ok := device.Applet()
			assert.False(t, ok)
		})
	}
}

func TestEnableWithWaitTimeExtension(t *testing.T) {
	t.Parallel()

	bus := appletChip([]byte{0x03, 0x01, 0x00, 0x00, 0x80, 0x01, 0x00, 0x90, 0x00}, nil)
	bus.BeforeResponse(t1.WtxFrame(3))
	device, clock := newTestDevice(t, bus)

	info, err := device.Enable()
	require.NoError(t, err)
	assert.True(t, info.Config.Has(ConfigAES))
	assert.GreaterOrEqual(t, clock.Elapsed(), t1.WtxPause)

	var echoed bool
	for _, w := range bus.Written() {
		if len(w) > 4 && w[1] == 0xE3 && w[3] == 3 {
			echoed = true
		}
	}
	assert.True(t, echoed, "WTX response written")
}

func TestEnableNoChip(t *testing.T) {
	t.Parallel()

	bus := t1.NewSimulatedBus()
	device, _ := newTestDevice(t, bus, WithRetryCount(4))

	_, err := device.Enable()
	require.Error(t, err)
	assert.ErrorIs(t, err, t1.ErrTimeout)
	assert.Equal(t, StatusT1Timeout, ErrorStatus(err))
}

func TestRunChainedResponse(t *testing.T) {
	t.Parallel()

	random := make([]byte, 300)
	for i := range random {
		random[i] = byte(i)
	}
	bus := appletChip([]byte{0x07, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x90, 0x00}, func([]byte) []byte {
		out := append([]byte{0x41, 0x82, 0x01, 0x2C}, random...)
		return append(out, 0x90, 0x00)
	})
	device, _ := newTestDevice(t, bus)
	_, err := device.Enable()
	require.NoError(t, err)

	buf := make([]byte, 512)
	var resp GetRandomResponse
	require.NoError(t, device.Run(GetRandom{Length: 300}, &resp, buf))
	assert.Equal(t, random, resp.Data)
	assert.Equal(t, 0, bus.HostSeqErrors())

	// an R-block acknowledges the first chained I-block
	var acks int
	for _, w := range bus.Written() {
		if len(w) == 5 && w[1]&0xEC == 0x80 {
			acks++
		}
	}
	assert.Equal(t, 1, acks)
}

func TestRunChainedCommand(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0xA5}, 300)
	inner := APDU{Cla: 0x80, Ins: 0x01, P1: 0x01, P2: 0x00, Data: payload}
	session := SessionID{1, 2, 3, 4, 5, 6, 7, 8}

	var got *apdu.Capdu
	bus := appletChip([]byte{0x07, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x90, 0x00}, func(command []byte) []byte {
		var err error
		got, err = apdu.ParseCapdu(command)
		if err != nil {
			return []byte{0x67, 0x00}
		}
		return []byte{0x90, 0x00}
	})
	device, _ := newTestDevice(t, bus)
	_, err := device.Enable()
	require.NoError(t, err)

	require.NoError(t, device.RunWithinSession(session, inner, nil, make([]byte, 16)))
	require.NotNil(t, got)
	assert.Equal(t, byte(0x80), got.Cla)
	assert.Equal(t, byte(0x05), got.Ins)
	assert.Equal(t, 65536, got.Ne)

	packets, err := bertlv.Decode(got.Data)
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.Equal(t, session[:], packets[0].Value)
	want, err := inner.Bytes()
	require.NoError(t, err)
	assert.Equal(t, want, packets[1].Value)
	assert.Equal(t, 0, bus.HostSeqErrors())
}

func TestRunStatusSkipsParser(t *testing.T) {
	t.Parallel()

	bus := appletChip([]byte{0x07, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x90, 0x00}, func([]byte) []byte {
		return []byte{0x41, 0x02, 0x12, 0x34, 0x69, 0x85}
	})
	device, _ := newTestDevice(t, bus)
	_, err := device.Enable()
	require.NoError(t, err)

	resp := &failingResponse{}
	err = device.Run(GetFreeMemory{Memory: MemoryPersistent}, resp, make([]byte, 32))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StatusConditionsOfUseNotSatisfied, se.Status)
	assert.False(t, resp.called)
}

type failingResponse struct {
	called bool
}

func (r *failingResponse) UnmarshalResponse([]byte) error {
	r.called = true
	return errors.New("should not be parsed")
}

func TestRunRaw(t *testing.T) {
	t.Parallel()

	bus := appletChip([]byte{0x07, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x90, 0x00}, func([]byte) []byte {
		return []byte{0x41, 0x02, 0x12, 0x34, 0x90, 0x00}
	})
	device, _ := newTestDevice(t, bus)
	_, err := device.Enable()
	require.NoError(t, err)

	buf := make([]byte, 32)
	body, err := device.RunRaw(GetFreeMemory{Memory: MemoryTransientReset}, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x02, 0x12, 0x34}, body)
	assert.Same(t, &buf[0], &body[0], "body aliases the buffer")

	var free GetFreeMemoryResponse
	require.NoError(t, free.UnmarshalResponse(body))
	assert.Equal(t, uint16(0x1234), free.Available)
}

func TestRunEmptyCommand(t *testing.T) {
	t.Parallel()

	device, _ := newTestDevice(t, t1.NewSimulatedChip(nil, nil))
	err := device.Run(APDU{Cla: 0x80, Data: make([]byte, 70000)}, nil, make([]byte, 8))

	var ie *InternalError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "encode command", ie.Op)
	assert.Contains(t, err.Error(), "encode APDU 8000")
	assert.Empty(t, device.bus.(*t1.SimulatedBus).Written())
}

func TestRunEncodeErrorIsWrapped(t *testing.T) {
	t.Parallel()

	device, _ := newTestDevice(t, t1.NewSimulatedChip(nil, nil))
	err := device.RunWithinSession(SessionID{}, nil, nil, make([]byte, 8))

	var ie *InternalError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, ErrTlv)
	assert.Contains(t, err.Error(), "no command to wrap")
}

func TestNewOptions(t *testing.T) {
	t.Parallel()

	t.Run("nil bus", func(t *testing.T) {
		t.Parallel()
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()
		_, err := New(t1.NewSimulatedBus(), WithAddress(0x80))
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("zero retry count", func(t *testing.T) {
		t.Parallel()
		_, err := New(t1.NewSimulatedBus(), WithRetryCount(0))
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("applied", func(t *testing.T) {
		t.Parallel()
		device, _ := newTestDevice(t, t1.NewSimulatedBus(), WithAddress(0x49), WithRetryCount(7), WithCounterBudget())
		cfg := device.Config()
		assert.Equal(t, uint16(0x49), cfg.Address)
		assert.Equal(t, uint32(7), cfg.RetryCount)
		assert.True(t, cfg.CounterBudget)
		assert.Equal(t, uint32(7), device.Link().RetryCount())

		device.SetRetryCount(9)
		assert.Equal(t, uint32(9), device.Link().RetryCount())
		assert.Equal(t, uint32(9), device.Config().RetryCount)
	})
}

type closingBus struct {
	*t1.SimulatedBus
	closed int
}

func (b *closingBus) Close() error {
	b.closed++
	return nil
}

func TestClose(t *testing.T) {
	t.Parallel()

	plain, _ := newTestDevice(t, t1.NewSimulatedBus())
	require.NoError(t, plain.Close())

	bus := &closingBus{SimulatedBus: t1.NewSimulatedBus()}
	device, _ := newTestDevice(t, bus)
	require.NoError(t, device.Close())
	assert.Equal(t, 1, bus.closed)
}
