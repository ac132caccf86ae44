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
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-se05x/internal/frame"
)

// SimulatedAtr returns the ATR of an SE050 with BWT 1000 ms, MPOT 1 ms and
// SEGT 100 us.
func SimulatedAtr() []byte {
	return []byte{
		0x00,
		0xA0, 0x00, 0x00, 0x03, 0x96,
		0x04, 0x03, 0xE8, 0x00, 0xFE,
		0x02,
		0x0B, 0x03, 0xE8, 0x08, 0x01, 0x00, 0x00, 0x00, 0x00, 0x64, 0x00, 0x00,
		0x0A, 0x4A, 0x43, 0x4F, 0x50, 0x34, 0x20, 0x41, 0x54, 0x50, 0x4F,
	}
}

// SimulatedBus is an in-memory Bus for tests.
//
// In raw mode (NewSimulatedBus) reads are served from frames queued by the
// test and writes are only recorded. In chip mode (NewSimulatedChip) the bus
// also answers like an SE05x: resync and soft reset requests, chained
// I-blocks acknowledged with R-blocks, and responses from Handler split into
// chained I-blocks that advance on the host's R-blocks.
//
// A read with nothing queued fails with ErrAddressNack, as a busy chip does.
type SimulatedBus struct {
	// Handler answers each reassembled command in chip mode.
	Handler func(command []byte) []byte
	// ReadErr and WriteErr, when set, fail every read or write.
	ReadErr  error
	WriteErr error
	atr      []byte
	// frames queued ahead of each response in chip mode
	beforeResponse [][]byte
	written        [][]byte
	queue          [][]byte
	pending        []byte
	response       []byte
	command        []byte
	commands       [][]byte
	reads          int
	writes         int
	readNacks      int
	writeNacks     int
	hostSeqErrors  int
	mu             sync.Mutex
	chipSendSeq    frame.Seq
	chipRecvSeq    frame.Seq
	chip           bool
}

// NewSimulatedBus returns a bus in raw mode.
func NewSimulatedBus() *SimulatedBus {
	return &SimulatedBus{}
}

// NewSimulatedChip returns a bus in chip mode. A nil atr selects SimulatedAtr.
func NewSimulatedChip(atr []byte, handler func(command []byte) []byte) *SimulatedBus {
	if atr == nil {
		atr = SimulatedAtr()
	}
	return &SimulatedBus{chip: true, atr: atr, Handler: handler}
}

// Queue appends raw frames to be read by the host.
func (b *SimulatedBus) Queue(frames ...[]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range frames {
		b.queue = append(b.queue, append([]byte{}, f...))
	}
}

// QueueNacks makes the next n frame reads fail with an address NACK.
func (b *SimulatedBus) QueueNacks(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < n; i++ {
		b.queue = append(b.queue, nil)
	}
}

// QueueIBlock queues a chip I-block.
func (b *SimulatedBus) QueueIBlock(seq Seq, more bool, data []byte) {
	b.Queue(chipBlock(frame.Information(seq, more), data))
}

// QueueRBlock queues a chip R-block.
func (b *SimulatedBus) QueueRBlock(seq Seq, code RError) {
	b.Queue(chipBlock(frame.Receipt(seq, code), nil))
}

// QueueSBlock queues a chip S-block.
func (b *SimulatedBus) QueueSBlock(block SBlock, data []byte) {
	b.Queue(chipBlock(frame.Supervisory(block), data))
}

// BeforeResponse queues frames ahead of every response in chip mode, for
// example a WTX request built with WtxFrame.
func (b *SimulatedBus) BeforeResponse(frames ...[]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beforeResponse = frames
}

// WtxFrame builds a chip WTX request with the given multiplier.
func WtxFrame(multiplier byte) []byte {
	return chipBlock(frame.Supervisory(frame.WtxRequest), []byte{multiplier})
}

// NackReads makes the next n reads fail with an address NACK.
func (b *SimulatedBus) NackReads(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readNacks = n
}

// NackWrites makes the next n writes fail with an address NACK.
func (b *SimulatedBus) NackWrites(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeNacks = n
}

// Written returns copies of every accepted write.
func (b *SimulatedBus) Written() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.written))
	for i, w := range b.written {
		out[i] = append([]byte{}, w...)
	}
	return out
}

// Commands returns the commands reassembled in chip mode.
func (b *SimulatedBus) Commands() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte{}, b.commands...)
}

// Reads returns the number of read calls, NACKed ones included.
func (b *SimulatedBus) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

// Writes returns the number of write calls, NACKed ones included.
func (b *SimulatedBus) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// HostSeqErrors returns how many host I-blocks carried an unexpected
// sequence bit in chip mode.
func (b *SimulatedBus) HostSeqErrors() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hostSeqErrors
}

// Read implements Bus.
func (b *SimulatedBus) Read(_ uint16, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.readNacks > 0 {
		b.readNacks--
		return fmt.Errorf("simulated read: %w", ErrAddressNack)
	}
	if b.ReadErr != nil {
		return b.ReadErr
	}
	if len(b.pending) == 0 {
		if len(b.queue) == 0 {
			return fmt.Errorf("simulated read: %w", ErrAddressNack)
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		if next == nil {
			return fmt.Errorf("simulated read: %w", ErrAddressNack)
		}
		b.pending = next
	}
	n := copy(r, b.pending)
	b.pending = b.pending[n:]
	for i := n; i < len(r); i++ {
		r[i] = 0xFF
	}
	return nil
}

// Write implements Bus.
func (b *SimulatedBus) Write(_ uint16, w []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	if b.writeNacks > 0 {
		b.writeNacks--
		return fmt.Errorf("simulated write: %w", ErrAddressNack)
	}
	if b.WriteErr != nil {
		return b.WriteErr
	}
	b.written = append(b.written, append([]byte{}, w...))
	if b.chip {
		b.react(w)
	}
	return nil
}

// WriteRead implements Bus.
func (b *SimulatedBus) WriteRead(addr uint16, w, r []byte) error {
	if err := b.Write(addr, w); err != nil {
		return err
	}
	return b.Read(addr, r)
}

func (b *SimulatedBus) react(w []byte) {
	blk, err := frame.Parse(w)
	if err != nil || blk.NAD != frame.HostToSE {
		return
	}

	switch blk.PCB.Kind {
	case frame.KindSupervisory:
		switch blk.PCB.Block {
		case frame.ResyncRequest:
			b.resetChip()
			b.queue = append(b.queue, chipBlock(frame.Supervisory(frame.ResyncResponse), nil))
		case frame.InterfaceSoftResetRequest:
			b.resetChip()
			b.queue = append(b.queue, chipBlock(frame.Supervisory(frame.InterfaceSoftResetResponse), b.atr))
		}
	case frame.KindInformation:
		if blk.PCB.Seq != b.chipRecvSeq {
			b.hostSeqErrors++
		}
		b.chipRecvSeq = blk.PCB.Seq.Flip()
		b.command = append(b.command, blk.Data...)
		if blk.PCB.More {
			b.queue = append(b.queue, chipBlock(frame.Receipt(b.chipRecvSeq, frame.RNoError), nil))
			return
		}
		command := b.command
		b.command = nil
		b.commands = append(b.commands, command)
		var response []byte
		if b.Handler != nil {
			response = b.Handler(command)
		}
		b.queue = append(b.queue, b.beforeResponse...)
		b.response = response
		b.sendChunk()
	case frame.KindReceipt:
		if len(b.response) > 0 {
			b.sendChunk()
		}
	}
}

func (b *SimulatedBus) resetChip() {
	b.chipSendSeq = frame.SeqZero
	b.chipRecvSeq = frame.SeqZero
	b.command = nil
	b.response = nil
	b.pending = nil
}

func (b *SimulatedBus) sendChunk() {
	n := min(len(b.response), frame.MaxDataLength)
	chunk := b.response[:n]
	b.response = b.response[n:]
	b.queue = append(b.queue, chipBlock(frame.Information(b.chipSendSeq, len(b.response) > 0), chunk))
	b.chipSendSeq = b.chipSendSeq.Flip()
}

func chipBlock(pcb frame.PCB, data []byte) []byte {
	raw, err := frame.Build(frame.SEToHost, pcb, data)
	if err != nil {
		panic(err)
	}
	return raw
}

// ManualClock is a Clock whose time only moves on Sleep or Advance.
type ManualClock struct {
	now    time.Time
	start  time.Time
	sleeps int
	mu     sync.Mutex
}

// NewManualClock returns a clock starting at the Unix epoch.
func NewManualClock() *ManualClock {
	start := time.Unix(0, 0)
	return &ManualClock{now: start, start: start}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements Clock by advancing the clock without blocking.
func (c *ManualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps++
	c.now = c.now.Add(d)
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Elapsed returns the time slept or advanced since creation.
func (c *ManualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}

// Sleeps returns the number of Sleep calls.
func (c *ManualClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}
