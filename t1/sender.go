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

	"github.com/ZaparooProject/go-se05x/internal/frame"
	"github.com/ZaparooProject/go-se05x/internal/transport"
)

// FrameSender streams one message of a declared length to the chip as a
// chain of I-blocks. It implements io.Writer.
type FrameSender struct {
	link    *Link
	total   int
	written int
	sent    int
	buf     [frame.MaxLength]byte
}

// NewFrameSender returns a sender for a message of exactly total bytes.
func (l *Link) NewFrameSender(total int) *FrameSender {
	return &FrameSender{link: l, total: total}
}

// Remaining returns how many bytes of the message are still to be written.
func (s *FrameSender) Remaining() int {
	return s.total - s.written
}

// Write implements io.Writer. Every full block and the final block are sent
// as soon as they are complete.
func (s *FrameSender) Write(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := s.WriteChunk(p[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// WriteChunk buffers as much of p as fits in the current block and returns
// the number of bytes consumed. The block is flushed when it is full or
// when the message is complete.
func (s *FrameSender) WriteChunk(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p)+s.written > s.total {
		s.link.logger.Error("message longer than declared", "declared", s.total, "written", s.written+len(p))
		return 0, internalError("write", fmt.Errorf("%d bytes exceed declared length %d", s.written+len(p), s.total))
	}
	if len(p) < 10 {
		s.link.logger.Debug("writing data", "data", p)
	} else {
		s.link.logger.Debug("writing data", "len", len(p))
	}

	offset := s.written - s.sent
	available := frame.MaxDataLength - offset
	n := min(available, len(p))
	copy(s.buf[frame.HeaderLength+offset:], p[:n])
	s.written += n

	if n == available || s.written == s.total {
		if err := s.Flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Flush sends the buffered bytes as one I-block. For every block but the
// last, the chip's R-block acknowledgement is read and checked.
func (s *FrameSender) Flush() error {
	l := s.link
	length := s.written - s.sent
	last := s.written == s.total

	pcb := frame.Information(l.sendSeq, !last)
	l.sendSeq = l.sendSeq.Flip()

	s.buf[0] = frame.HostToSE
	s.buf[1] = pcb.Encode()
	s.buf[2] = byte(length)
	end := frame.HeaderLength + length
	trailer := frame.ChecksumBytes(s.buf[:end])
	copy(s.buf[end:], trailer[:])
	raw := s.buf[:end+frame.TrailerLength]
	l.logger.Debug("sending block", "pcb", pcb, "len", length)

	_, err := transport.WithRetry(transport.RetryConfig{
		Description: "write I-block",
		MaxAttempts: int(l.retryCount),
		Exhausted:   fmt.Errorf("%w: I-block not accepted after %d attempts", ErrTimeout, l.retryCount),
		OnRetry: func() error {
			l.WaitGuardTime()
			return nil
		},
	}, func() (struct{}, bool, error) {
		err := l.Write(raw)
		if errors.Is(err, ErrAddressNack) {
			return struct{}{}, true, nil
		}
		return struct{}{}, false, err
	})
	if err != nil {
		return err
	}
	s.sent += length

	if last {
		return nil
	}
	return s.readAck()
}

func (s *FrameSender) readAck() error {
	l := s.link
	var ack [frame.RBlockLength]byte
	l.WaitGuardTime()
	if err := l.Read(ack[:]); err != nil {
		return err
	}
	l.logger.Debug("received acknowledgement", "block", ack)

	if ack[0] != frame.SEToHost {
		l.logger.Error("bad node address", "nad", ack[0])
		return fmt.Errorf("%w: 0x%02X", ErrBadAddress, ack[0])
	}
	pcb, err := frame.Decode(ack[1])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadPcb, err)
	}
	switch {
	case pcb.Kind != frame.KindReceipt:
		l.logger.Error("expected R-block", "pcb", pcb)
		return fmt.Errorf("%w: expected R-block, got %v", ErrBadPcb, pcb)
	case pcb.Err == frame.RCrcError:
		l.logger.Error("chip reported checksum error")
		return fmt.Errorf("%w: reported by chip", ErrBadCrc)
	case pcb.Err != frame.RNoError:
		l.logger.Error("chip reported error", "pcb", pcb)
		return fmt.Errorf("%w: %v", ErrBadPcb, pcb)
	case pcb.Seq != l.sendSeq:
		l.logger.Warn("R-block sequence mismatch", "expected", l.sendSeq, "got", pcb.Seq)
		return fmt.Errorf("%w: acknowledged sequence %v, expected %v", ErrBadPcb, pcb.Seq, l.sendSeq)
	}
	if ack[2] != 0 {
		l.logger.Error("R-block carries data", "len", ack[2])
		return fmt.Errorf("%w: R-block length %d", ErrBadPcb, ack[2])
	}
	if !frame.ValidateChecksum(ack[:frame.HeaderLength], nil, ack[frame.HeaderLength:]) {
		return fmt.Errorf("%w: R-block", ErrBadCrc)
	}
	return nil
}
