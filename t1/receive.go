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
	"time"

	"github.com/ZaparooProject/go-se05x/internal/frame"
)

// Received describes how a reception ended.
type Received struct {
	// Block is the terminating S-block when Supervisory is set.
	Block SBlock
	// IData is the number of I-block bytes accumulated at the start of the buffer.
	IData int
	// SData is the length of the S-block payload copied to buf[IData:].
	SData int
	// Supervisory reports that an S-block ended the reception.
	Supervisory bool
}

func (r Received) String() string {
	if r.Supervisory {
		return fmt.Sprintf("%v after %d bytes with %d bytes", r.Block, r.IData, r.SData)
	}
	return fmt.Sprintf("%d bytes", r.IData)
}

// budget bounds a reception. The counter allows bwt*multiplier/mpot polls;
// unless the link uses the counter alone, the time since the last received
// block is also bounded by bwt*multiplier.
type budget struct {
	deadline time.Time
	limit    int64
	count    int64
}

func (l *Link) newBudget(multiplier int64) budget {
	poll := l.pollInterval.Microseconds()
	if poll <= 0 {
		poll = 1
	}
	wait := l.blockWaitingTime * time.Duration(multiplier)
	return budget{
		limit:    l.blockWaitingTime.Microseconds()*multiplier/poll + 1,
		deadline: l.clock.Now().Add(wait + l.pollInterval),
	}
}

// next reports whether another poll is allowed.
func (l *Link) next(b *budget) bool {
	b.count++
	if b.count >= b.limit {
		return false
	}
	return l.counterBudget || !l.clock.Now().After(b.deadline)
}

func (l *Link) refresh(b *budget, multiplier int64) {
	if l.counterBudget {
		return
	}
	wait := l.blockWaitingTime * time.Duration(multiplier)
	b.deadline = l.clock.Now().Add(wait + l.pollInterval)
}

// Receive reads blocks from the chip into buf until an unchained I-block or
// a non-WTX S-block arrives. Chained I-blocks are acknowledged and their
// payloads concatenated. WTX requests are answered and extend the budget.
// An address NACK means the chip is not ready and is retried after the poll
// interval.
func (l *Link) Receive(buf []byte) (Received, error) {
	var (
		header  [frame.HeaderLength]byte
		trailer [frame.TrailerLength]byte
		data    [frame.MaxDataLength]byte
	)
	written := 0
	multiplier := int64(1)
	b := l.newBudget(multiplier)

	for l.next(&b) {
		if err := l.Read(header[:]); err != nil {
			if errors.Is(err, ErrAddressNack) {
				l.WaitPollInterval()
				continue
			}
			return Received{}, err
		}

		nad, rawPCB, length := header[0], header[1], int(header[2])
		l.logger.Debug("received header", "nad", nad, "pcb", rawPCB, "len", length)

		if len(buf) < written+length {
			l.logger.Error("reception buffer too small", "have", len(buf), "need", written+length)
			return Received{}, fmt.Errorf("%w: need %d bytes, have %d", ErrReceptionBuffer, written+length, len(buf))
		}
		if length > frame.MaxDataLength {
			l.logger.Error("block too large", "len", length)
			return Received{}, fmt.Errorf("%w: block of %d bytes", ErrReceptionBuffer, length)
		}
		if nad != frame.SEToHost {
			l.logger.Error("bad node address", "nad", nad)
			return Received{}, fmt.Errorf("%w: 0x%02X", ErrBadAddress, nad)
		}

		payload := data[:length]
		if length != 0 {
			if err := l.Read(payload); err != nil {
				return Received{}, err
			}
		}
		if err := l.Read(trailer[:]); err != nil {
			return Received{}, err
		}
		if !frame.ValidateChecksum(header[:], payload, trailer[:]) {
			l.logger.Error("bad checksum", "trailer", trailer, "expected", frame.ChecksumBytes(header[:], payload))
			return Received{}, ErrBadCrc
		}
		pcb, err := frame.Decode(rawPCB)
		if err != nil {
			return Received{}, fmt.Errorf("%w: %w", ErrBadPcb, err)
		}

		switch pcb.Kind {
		case frame.KindSupervisory:
			if pcb.Block != frame.WtxRequest {
				copy(buf[written:], payload)
				return Received{
					Supervisory: true,
					Block:       pcb.Block,
					IData:       written,
					SData:       length,
				}, nil
			}
			if length != 1 {
				return Received{}, internalError("wtx", fmt.Errorf("WTX request carries %d bytes", length))
			}
			mult := payload[0]
			l.logger.Debug("wait time extension", "multiplier", mult)
			if err := l.writeBlock(frame.Supervisory(frame.WtxResponse), []byte{mult}); err != nil {
				return Received{}, err
			}
			l.clock.Sleep(WtxPause)
			multiplier = int64(mult)
			b = l.newBudget(multiplier)
			continue
		case frame.KindReceipt:
			l.logger.Error("unexpected R-block while receiving", "pcb", pcb)
			return Received{}, internalError("receive", fmt.Errorf("unsolicited %v", pcb))
		}

		copy(buf[written:], payload)
		written += length

		if pcb.Seq != l.recvSeq {
			l.logger.Warn("I-block sequence mismatch", "expected", l.recvSeq, "got", pcb.Seq)
		}
		l.recvSeq = pcb.Seq.Flip()

		if !pcb.More {
			return Received{IData: written}, nil
		}
		if err := l.writeBlock(frame.Receipt(l.recvSeq, frame.RNoError), nil); err != nil {
			return Received{}, err
		}
		l.refresh(&b, multiplier)
	}

	l.logger.Error("block waiting time exceeded")
	return Received{}, ErrTimeout
}
