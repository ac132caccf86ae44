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
	"strings"
)

// AppletID is the AID of the SE05x IoT applet.
var AppletID = []byte{
	0xA0, 0x00, 0x00, 0x03, 0x96, 0x54, 0x53, 0x00,
	0x00, 0x00, 0x01, 0x03, 0x00, 0x00, 0x00, 0x00,
}

// AppletConfig is the feature bitmap reported by the applet.
type AppletConfig uint16

// Applet features.
const (
	ConfigECDAA            AppletConfig = 0x0001
	ConfigECDSAECDHECDHE   AppletConfig = 0x0002
	ConfigEdDSA            AppletConfig = 0x0004
	ConfigDHMont           AppletConfig = 0x0008
	ConfigHMAC             AppletConfig = 0x0010
	ConfigRSAPlain         AppletConfig = 0x0020
	ConfigRSACRT           AppletConfig = 0x0040
	ConfigAES              AppletConfig = 0x0080
	ConfigDES              AppletConfig = 0x0100
	ConfigPBKDF            AppletConfig = 0x0200
	ConfigTLS              AppletConfig = 0x0400
	ConfigMIFARE           AppletConfig = 0x0800
	ConfigFIPSModeDisabled AppletConfig = 0x1000
	ConfigI2CM             AppletConfig = 0x2000

	ConfigECCAll AppletConfig = 0x000F
	ConfigRSAAll AppletConfig = 0x0060
	ConfigAll    AppletConfig = 0x3FFF
)

var appletConfigNames = []struct {
	name string
	flag AppletConfig
}{
	{"ECDAA", ConfigECDAA},
	{"ECDSA_ECDH_ECDHE", ConfigECDSAECDHECDHE},
	{"EDDSA", ConfigEdDSA},
	{"DH_MONT", ConfigDHMont},
	{"HMAC", ConfigHMAC},
	{"RSA_PLAIN", ConfigRSAPlain},
	{"RSA_CRT", ConfigRSACRT},
	{"AES", ConfigAES},
	{"DES", ConfigDES},
	{"PBKDF", ConfigPBKDF},
	{"TLS", ConfigTLS},
	{"MIFARE", ConfigMIFARE},
	{"FIPS_MODE_DISABLED", ConfigFIPSModeDisabled},
	{"I2CM", ConfigI2CM},
}

// Has reports whether every bit of flag is set.
func (c AppletConfig) Has(flag AppletConfig) bool {
	return c&flag == flag
}

func (c AppletConfig) String() string {
	var names []string
	rest := c
	for _, n := range appletConfigNames {
		if c.Has(n.flag) {
			names = append(names, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%04X", uint16(rest)))
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// appletRecordLength is the size of the version record returned by SELECT
// and GetVersion.
const appletRecordLength = 7

// AppletInfo is the applet version record.
type AppletInfo struct {
	Major          uint8
	Minor          uint8
	Patch          uint8
	SecureBoxMajor uint8
	SecureBoxMinor uint8
	Config         AppletConfig
}

// VersionInfo is the record returned by GetVersion.
type VersionInfo = AppletInfo

// UnmarshalResponse implements Response. The record must be exactly 7
// bytes.
func (a *AppletInfo) UnmarshalResponse(data []byte) error {
	if len(data) != appletRecordLength {
		return fmt.Errorf("%w: applet record has %d bytes, want %d", ErrTlv, len(data), appletRecordLength)
	}
	*a = AppletInfo{
		Major:          data[0],
		Minor:          data[1],
		Patch:          data[2],
		Config:         AppletConfig(binary.BigEndian.Uint16(data[3:5])),
		SecureBoxMajor: data[5],
		SecureBoxMinor: data[6],
	}
	return nil
}

func (a AppletInfo) String() string {
	return fmt.Sprintf("applet %d.%d.%d (secure box %d.%d) features %v",
		a.Major, a.Minor, a.Patch, a.SecureBoxMajor, a.SecureBoxMinor, a.Config)
}

// Select selects the IoT applet.
type Select struct{}

// APDU returns the encoded form.
func (Select) APDU() (APDU, error) {
	return APDU{Cla: 0x00, Ins: 0xA4, P1: 0x04, P2: 0x00, Data: AppletID, Ne: appletRecordLength}, nil
}

// Len implements Command.
func (c Select) Len() int { return builderLen(c) }

// WriteTo implements Command.
func (c Select) WriteTo(w io.Writer) (int64, error) { return builderWriteTo(c, w) }
