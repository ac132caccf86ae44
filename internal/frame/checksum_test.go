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

package frame

import (
	"bytes"
	"testing"
)

func TestChecksum(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		parts [][]byte
		want  uint16
	}{
		{
			name:  "check string",
			parts: [][]byte{[]byte("123456789")},
			want:  0x906E,
		},
		{
			name:  "empty header",
			parts: [][]byte{{0x5A, 0x00, 0x00}},
			want:  0x3655,
		},
		{
			name:  "resync request",
			parts: [][]byte{{0x5A, 0xC0, 0x00}},
			want:  0xFCFF,
		},
		{
			name:  "split across parts",
			parts: [][]byte{{0xA5, 0xC3, 0x01}, {0x05}},
			want:  0x9B3F,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Checksum(tt.parts...); got != tt.want {
				t.Errorf("Checksum() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}

func TestChecksumStable(t *testing.T) {
	t.Parallel()

	data := []byte{0x5A, 0x20, 0x04, 0xDE, 0xAD, 0xBE, 0xEF}
	first := Checksum(data)
	for i := 0; i < 4; i++ {
		if got := Checksum(data[:3], data[3:]); got != first {
			t.Fatalf("Checksum() changed between calls: 0x%04X != 0x%04X", got, first)
		}
	}
}

func TestBuildAndParse(t *testing.T) {
	t.Parallel()

	blk, err := Build(HostToSE, Supervisory(ResyncRequest), nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	want := []byte{0x5A, 0xC0, 0x00, 0xFF, 0xFC}
	if !bytes.Equal(blk, want) {
		t.Fatalf("Build() = % X, want % X", blk, want)
	}

	parsed, err := Parse(blk)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if parsed.NAD != HostToSE || parsed.PCB != Supervisory(ResyncRequest) || len(parsed.Data) != 0 {
		t.Errorf("Parse() = %+v", parsed)
	}

	blk[len(blk)-1] ^= 0xFF
	if _, err := Parse(blk); err == nil {
		t.Error("Parse() accepted a corrupted checksum")
	}
}

func TestBuildRejectsOversizedData(t *testing.T) {
	t.Parallel()

	if _, err := Build(HostToSE, Information(SeqZero, false), make([]byte, MaxDataLength+1)); err == nil {
		t.Error("Build() accepted more than MaxDataLength bytes")
	}
	if _, err := Build(HostToSE, Information(SeqZero, false), make([]byte, MaxDataLength)); err != nil {
		t.Errorf("Build() rejected MaxDataLength bytes: %v", err)
	}
}
