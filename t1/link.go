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
	"log/slog"
	"time"

	"github.com/ZaparooProject/go-se05x/internal/frame"
	"github.com/ZaparooProject/go-se05x/internal/logging"
)

const (
	// DefaultAddress is the 7-bit I2C address of SE05x parts.
	DefaultAddress uint16 = 0x48
	// DefaultRetryCount bounds I-block write attempts on address NACK.
	DefaultRetryCount uint32 = 1024
	// DefaultPollInterval is the minimum polling time used before the ATR is known.
	DefaultPollInterval = time.Millisecond
	// DefaultGuardTime is the guard time used before the ATR is known.
	DefaultGuardTime = 10 * time.Microsecond
	// DefaultBlockWaitingTime is the block waiting time used before the ATR is known.
	DefaultBlockWaitingTime = 100 * time.Millisecond
	// WtxPause is the delay between answering a WTX request and polling again.
	WtxPause = 100 * time.Millisecond
)

// AtrBufferSize is large enough for any ATR an SE05x returns.
const AtrBufferSize = 64

// S-block codes a caller may see in Received.Block.
type SBlock = frame.SBlock

const (
	ResyncResponse             = frame.ResyncResponse
	IfsResponse                = frame.IfsResponse
	AbortResponse              = frame.AbortResponse
	WtxRequest                 = frame.WtxRequest
	InterfaceSoftResetResponse = frame.InterfaceSoftResetResponse
	EndOfApduSessionResponse   = frame.EndOfApduSessionResponse
	SeChipResetResponse        = frame.SeChipResetResponse
	GetAtrResponse             = frame.GetAtrResponse
)

// Option configures a Link.
type Option func(*Link)

// WithAddress sets the I2C address of the secure element.
func WithAddress(addr uint16) Option {
	return func(l *Link) {
		l.address = addr
	}
}

// WithRetryCount sets how many times an I-block write is attempted.
func WithRetryCount(count uint32) Option {
	return func(l *Link) {
		l.retryCount = count
	}
}

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(l *Link) {
		l.clock = clock
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Link) {
		l.logger = logger
	}
}

// WithCounterBudget bounds reception by the poll counter alone, ignoring
// elapsed time. This matches targets without a usable clock.
func WithCounterBudget() Option {
	return func(l *Link) {
		l.counterBudget = true
	}
}

// Link is a T=1 over I2C connection to one secure element.
type Link struct {
	bus              Bus
	clock            Clock
	logger           *slog.Logger
	pollInterval     time.Duration
	guardTime        time.Duration
	blockWaitingTime time.Duration
	retryCount       uint32
	address          uint16
	sendSeq          frame.Seq
	recvSeq          frame.Seq
	counterBudget    bool
}

// New creates a link over bus using the default timing parameters.
func New(bus Bus, opts ...Option) *Link {
	l := &Link{
		bus:              bus,
		clock:            SystemClock(),
		address:          DefaultAddress,
		retryCount:       DefaultRetryCount,
		pollInterval:     DefaultPollInterval,
		guardTime:        DefaultGuardTime,
		blockWaitingTime: DefaultBlockWaitingTime,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.New("t1")
	}
	return l
}

// SetRetryCount changes how many times an I-block write is attempted.
func (l *Link) SetRetryCount(count uint32) {
	l.retryCount = count
}

// RetryCount returns the current I-block write attempt limit.
func (l *Link) RetryCount() uint32 {
	return l.retryCount
}

// PollInterval returns the negotiated minimum polling time.
func (l *Link) PollInterval() time.Duration {
	return l.pollInterval
}

// GuardTime returns the negotiated guard time.
func (l *Link) GuardTime() time.Duration {
	return l.guardTime
}

// BlockWaitingTime returns the negotiated block waiting time.
func (l *Link) BlockWaitingTime() time.Duration {
	return l.blockWaitingTime
}

// WaitGuardTime blocks for the guard time. Callers wait it between sending
// a block and reading the answer.
func (l *Link) WaitGuardTime() {
	l.clock.Sleep(l.guardTime)
}

// WaitPollInterval blocks for the minimum polling time.
func (l *Link) WaitPollInterval() {
	l.clock.Sleep(l.pollInterval)
}

// Write sends raw bytes to the secure element.
func (l *Link) Write(data []byte) error {
	return l.classify("write", l.bus.Write(l.address, data))
}

// Read reads raw bytes from the secure element.
func (l *Link) Read(buf []byte) error {
	return l.classify("read", l.bus.Read(l.address, buf))
}

// WriteRead writes then reads in one bus transaction. UM11225 3.1.1.1
// discourages it and the link never uses it itself.
func (l *Link) WriteRead(data, buf []byte) error {
	return l.classify("write-read", l.bus.WriteRead(l.address, data, buf))
}

func (l *Link) classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAddressNack):
		return ErrAddressNack
	case errors.Is(err, ErrDataNack):
		return ErrDataNack
	default:
		l.logger.Warn("bus error", "op", op, "error", err)
		return internalError(op, err)
	}
}

func (l *Link) writeBlock(pcb frame.PCB, data []byte) error {
	raw, err := frame.Build(frame.HostToSE, pcb, data)
	if err != nil {
		return internalError("build block", err)
	}
	l.logger.Debug("sending block", "pcb", pcb, "len", len(data))
	return l.Write(raw)
}

// Resync resets the sequence bits on both sides of the link.
func (l *Link) Resync() error {
	if err := l.writeBlock(frame.Supervisory(frame.ResyncRequest), nil); err != nil {
		return fmt.Errorf("resync request: %w", err)
	}
	l.WaitGuardTime()
	got, err := l.Receive(nil)
	if err != nil {
		return fmt.Errorf("resync response: %w", err)
	}
	if !got.Supervisory || got.Block != frame.ResyncResponse || got.IData != 0 || got.SData != 0 {
		l.logger.Error("unexpected resync answer", "received", got)
		return fmt.Errorf("%w: resync answered with %v", ErrBadPcb, got)
	}
	l.sendSeq = frame.SeqZero
	l.recvSeq = frame.SeqZero
	return nil
}

// InterfaceSoftReset resets the chip's T=1 interface and applies the timing
// parameters from its ATR. buf receives the raw ATR and should hold at least
// AtrBufferSize bytes. When the ATR cannot be parsed DefaultAtr is returned
// and the current timing is kept.
func (l *Link) InterfaceSoftReset(buf []byte) (Atr, error) {
	if err := l.writeBlock(frame.Supervisory(frame.InterfaceSoftResetRequest), nil); err != nil {
		return Atr{}, fmt.Errorf("soft reset request: %w", err)
	}
	l.WaitGuardTime()
	got, err := l.Receive(buf)
	if err != nil {
		return Atr{}, fmt.Errorf("soft reset response: %w", err)
	}
	if !got.Supervisory || got.Block != frame.InterfaceSoftResetResponse || got.IData != 0 {
		l.logger.Error("unexpected soft reset answer", "received", got)
		return Atr{}, fmt.Errorf("%w: soft reset answered with %v", ErrBadPcb, got)
	}

	l.sendSeq = frame.SeqZero
	l.recvSeq = frame.SeqZero

	atr, err := ParseAtr(buf[:got.SData])
	if err != nil {
		l.logger.Warn("using default link parameters", "error", err)
		return DefaultAtr(), nil
	}
	l.pollInterval = atr.PollInterval()
	l.guardTime = atr.GuardTime()
	l.blockWaitingTime = atr.BlockWaitingTime()
	l.logger.Debug("negotiated link parameters",
		"bwt", l.blockWaitingTime, "mpot", l.pollInterval, "segt", l.guardTime, "ifsc", atr.IFSC)
	return atr, nil
}

// Sequence bits and R-block error codes, as seen by test helpers and logs.
type (
	Seq    = frame.Seq
	RError = frame.RError
)

const (
	SeqZero     = frame.SeqZero
	SeqOne      = frame.SeqOne
	RNoError    = frame.RNoError
	RCrcError   = frame.RCrcError
	ROtherError = frame.ROtherError
)
