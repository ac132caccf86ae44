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

import "fmt"

// StatusWord is the two-byte ISO 7816 status returned by the chip, or a
// reserved value from ErrorStatus describing a host-side failure.
type StatusWord uint16

// Chip status words.
const (
	StatusSuccess                      StatusWord = 0x9000
	StatusWrongLength                  StatusWord = 0x6700
	StatusSecurityStatusNotSatisfied   StatusWord = 0x6982
	StatusAuthenticationMethodBlocked  StatusWord = 0x6983
	StatusConditionsOfUseNotSatisfied  StatusWord = 0x6985
	StatusCommandNotAllowed            StatusWord = 0x6986
	StatusWrongData                    StatusWord = 0x6A80
	StatusFileNotFound                 StatusWord = 0x6A82
	StatusIncorrectP1P2                StatusWord = 0x6A86
	StatusInstructionNotSupported      StatusWord = 0x6D00
	StatusClassNotSupported            StatusWord = 0x6E00
	StatusNoPreciseDiagnosis           StatusWord = 0x6F00
	StatusMemoryFailure                StatusWord = 0x6581
	StatusFileFull                     StatusWord = 0x6A84
	StatusUnsupportedSecureMessaging   StatusWord = 0x6882
	StatusAuthenticationFailedRetryLow StatusWord = 0x63C0
)

// Reserved status words for host-side failures. Chip status words never
// fall in these ranges.
const (
	StatusUnknownError       StatusWord = 0x0000
	StatusTlvError           StatusWord = 0x0001
	StatusT1Unknown          StatusWord = 0x0002
	StatusT1AddressNack      StatusWord = 0x0003
	StatusT1DataNack         StatusWord = 0x0004
	StatusT1BadCrc           StatusWord = 0x0005
	StatusT1BadPcb           StatusWord = 0x0006
	StatusT1BadAddress       StatusWord = 0x0007
	StatusT1ReceptionBuffer  StatusWord = 0x0008
	StatusT1Timeout          StatusWord = 0x0009
	StatusT1InternalBase     StatusWord = 0x1000
	StatusDispatcherInternal StatusWord = 0x2000
)

const maxStatusLine = 0x0FFF

var statusNames = map[StatusWord]string{
	StatusSuccess:                      "success",
	StatusWrongLength:                  "wrong length",
	StatusSecurityStatusNotSatisfied:   "security status not satisfied",
	StatusAuthenticationMethodBlocked:  "authentication method blocked",
	StatusConditionsOfUseNotSatisfied:  "conditions of use not satisfied",
	StatusCommandNotAllowed:            "command not allowed",
	StatusWrongData:                    "wrong data",
	StatusFileNotFound:                 "file not found",
	StatusIncorrectP1P2:                "incorrect P1 P2",
	StatusInstructionNotSupported:      "instruction not supported",
	StatusClassNotSupported:            "class not supported",
	StatusNoPreciseDiagnosis:           "no precise diagnosis",
	StatusMemoryFailure:                "memory failure",
	StatusFileFull:                     "file full",
	StatusUnsupportedSecureMessaging:   "secure messaging not supported",
	StatusAuthenticationFailedRetryLow: "authentication failed",
	StatusUnknownError:                 "unknown error",
	StatusTlvError:                     "malformed TLV",
	StatusT1Unknown:                    "T=1 unknown error",
	StatusT1AddressNack:                "T=1 address not acknowledged",
	StatusT1DataNack:                   "T=1 data not acknowledged",
	StatusT1BadCrc:                     "T=1 checksum mismatch",
	StatusT1BadPcb:                     "T=1 bad PCB",
	StatusT1BadAddress:                 "T=1 bad address",
	StatusT1ReceptionBuffer:            "T=1 reception buffer too small",
	StatusT1Timeout:                    "T=1 timeout",
}

// IsSuccess reports whether s is 0x9000.
func (s StatusWord) IsSuccess() bool {
	return s == StatusSuccess
}

func (s StatusWord) String() string {
	if name, ok := statusNames[s]; ok {
		return fmt.Sprintf("%04X (%s)", uint16(s), name)
	}
	switch {
	case s >= StatusDispatcherInternal && s <= StatusDispatcherInternal+maxStatusLine:
		return fmt.Sprintf("%04X (internal error, line %d)", uint16(s), s-StatusDispatcherInternal)
	case s >= StatusT1InternalBase && s <= StatusT1InternalBase+maxStatusLine:
		return fmt.Sprintf("%04X (T=1 internal error, line %d)", uint16(s), s-StatusT1InternalBase)
	}
	return fmt.Sprintf("%04X", uint16(s))
}
