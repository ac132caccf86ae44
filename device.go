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
	"fmt"
	"io"
	"log/slog"

	"github.com/ZaparooProject/go-se05x/internal/logging"
	"github.com/ZaparooProject/go-se05x/t1"
)

// Buffer sizes used by Enable.
const (
	selectBufferSize  = appletRecordLength + 2
	statusWordLength  = 2
	defaultRunBufSize = 1024
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Clock drives guard times and reception budgets. Nil selects the
	// system clock.
	Clock t1.Clock
	// Logger receives protocol diagnostics. Nil selects the SE05X_DEBUG
	// controlled default.
	Logger *slog.Logger
	// RetryCount is how many times a block write is attempted.
	RetryCount uint32
	// Address is the 7-bit I2C address.
	Address uint16
	// CounterBudget bounds receptions by poll count alone.
	CounterBudget bool
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Address:    t1.DefaultAddress,
		RetryCount: t1.DefaultRetryCount,
	}
}

// Device is an SE05x secure element reached over a T=1 link.
//
// Device is not safe for concurrent use. Each call runs one full
// command/response exchange and leaves the link idle.
type Device struct {
	bus    t1.Bus
	link   *t1.Link
	config *DeviceConfig
	logger *slog.Logger
	applet *AppletInfo
}

// New creates a device on bus. No traffic is sent until Enable.
func New(bus t1.Bus, opts ...Option) (*Device, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: nil bus", ErrInvalidOption)
	}
	device := &Device{
		bus:    bus,
		config: DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	device.logger = device.config.Logger
	if device.logger == nil {
		device.logger = logging.New("se05x")
	}
	linkOpts := []t1.Option{
		t1.WithAddress(device.config.Address),
		t1.WithRetryCount(device.config.RetryCount),
		t1.WithLogger(device.logger.With("layer", "t1")),
	}
	if device.config.Clock != nil {
		linkOpts = append(linkOpts, t1.WithClock(device.config.Clock))
	}
	if device.config.CounterBudget {
		linkOpts = append(linkOpts, t1.WithCounterBudget())
	}
	device.link = t1.New(bus, linkOpts...)
	return device, nil
}

// Link returns the underlying T=1 link.
func (d *Device) Link() *t1.Link {
	return d.link
}

// Config returns the configuration the device was built with.
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Applet returns the record read by the last successful Enable.
func (d *Device) Applet() (AppletInfo, bool) {
	if d.applet == nil {
		return AppletInfo{}, false
	}
	return *d.applet, true
}

// SetRetryCount changes how many times a block write is attempted.
func (d *Device) SetRetryCount(count uint32) {
	d.config.RetryCount = count
	d.link.SetRetryCount(count)
}

// Resync resets the link sequence bits.
func (d *Device) Resync() error {
	if err := d.link.Resync(); err != nil {
		return fmt.Errorf("resync: %w", err)
	}
	return nil
}

// SoftReset resets the chip's T=1 interface and adopts its timing.
func (d *Device) SoftReset() (t1.Atr, error) {
	buf := make([]byte, t1.AtrBufferSize)
	atr, err := d.link.InterfaceSoftReset(buf)
	if err != nil {
		return t1.Atr{}, fmt.Errorf("soft reset: %w", err)
	}
	return atr, nil
}

// Enable brings the chip into a usable state: it resynchronizes the link,
// soft resets the interface and selects the IoT applet.
func (d *Device) Enable() (AppletInfo, error) {
	if err := d.Resync(); err != nil {
		return AppletInfo{}, err
	}
	atr, err := d.SoftReset()
	if err != nil {
		return AppletInfo{}, err
	}
	d.logger.Debug("interface reset", "bwt", atr.BlockWaitingTime(), "ifsc", atr.IFSC,
		"historical", string(atr.HistoricalBytes))

	var info AppletInfo
	buf := make([]byte, selectBufferSize)
	if err := d.Run(Select{}, &info, buf); err != nil {
		return AppletInfo{}, fmt.Errorf("select applet: %w", err)
	}
	d.applet = &info
	d.logger.Debug("applet selected", "applet", info)
	return info, nil
}

// Run sends cmd and parses the response body into resp. buf receives the
// raw response including the status word, so it must hold the largest
// expected answer; resp may alias it. A nil resp discards the body.
func (d *Device) Run(cmd Command, resp Response, buf []byte) error {
	body, err := d.exchange(cmd, buf)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	if err := resp.UnmarshalResponse(body); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// RunRaw sends cmd and returns the response body, which aliases buf.
func (d *Device) RunRaw(cmd Command, buf []byte) ([]byte, error) {
	return d.exchange(cmd, buf)
}

// RunWithinSession wraps cmd in a ProcessSessionCmd envelope for session
// and runs it.
func (d *Device) RunWithinSession(session SessionID, cmd Command, resp Response, buf []byte) error {
	return d.Run(ProcessSessionCmd{SessionID: session, Command: cmd}, resp, buf)
}

// Close closes the bus when it implements io.Closer.
func (d *Device) Close() error {
	closer, ok := d.bus.(io.Closer)
	if !ok {
		return nil
	}
	if err := closer.Close(); err != nil {
		return fmt.Errorf("failed to close bus: %w", err)
	}
	return nil
}

func (d *Device) exchange(cmd Command, buf []byte) ([]byte, error) {
	total := cmd.Len()
	if total <= 0 {
		if _, err := cmd.WriteTo(io.Discard); err != nil {
			return nil, internalError("encode command", fmt.Errorf("command %T: %w", cmd, err))
		}
		return nil, internalError("encode command", fmt.Errorf("command %T has no encoding", cmd))
	}

	sender := d.link.NewFrameSender(total)
	written, err := cmd.WriteTo(sender)
	if err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}
	if int(written) != total || sender.Remaining() != 0 {
		return nil, internalError("send command",
			fmt.Errorf("command %T wrote %d of %d bytes", cmd, written, total))
	}

	d.link.WaitGuardTime()
	body, status, err := d.receive(buf)
	if err != nil {
		return nil, err
	}
	if !status.IsSuccess() {
		d.logger.Debug("command failed", "command", fmt.Sprintf("%T", cmd), "status", status)
		return nil, &StatusError{Status: status}
	}
	return body, nil
}

// receive reads one response APDU and splits off its status word.
func (d *Device) receive(buf []byte) ([]byte, StatusWord, error) {
	got, err := d.link.Receive(buf)
	if err != nil {
		return nil, 0, fmt.Errorf("receive response: %w", err)
	}
	if got.Supervisory {
		return nil, 0, internalError("receive response", fmt.Errorf("unexpected %v", got))
	}
	if got.IData < statusWordLength {
		return nil, 0, internalError("receive response",
			fmt.Errorf("response of %d bytes has no status word", got.IData))
	}
	end := got.IData - statusWordLength
	status := StatusWord(binary.BigEndian.Uint16(buf[end:got.IData]))
	return buf[:end], status, nil
}
