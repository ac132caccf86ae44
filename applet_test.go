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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppletConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		want   string
		config AppletConfig
	}{
		{name: "none", config: 0, want: "none"},
		{name: "single", config: ConfigAES, want: "AES"},
		{name: "ecc", config: ConfigECCAll, want: "ECDAA|ECDSA_ECDH_ECDHE|EDDSA|DH_MONT"},
		{name: "unknown bits", config: ConfigHMAC | 0x8000, want: "HMAC|0x8000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.config.String())
		})
	}

	assert.True(t, ConfigAll.Has(ConfigRSAAll))
	assert.True(t, ConfigAll.Has(ConfigI2CM|ConfigFIPSModeDisabled))
	assert.False(t, ConfigRSAPlain.Has(ConfigRSAAll))
}

func TestAppletInfoUnmarshal(t *testing.T) {
	t.Parallel()

	var info AppletInfo
	require.NoError(t, info.UnmarshalResponse([]byte{0x03, 0x01, 0x02, 0x04, 0x80, 0x01, 0x03}))
	assert.Equal(t, AppletInfo{
		Major:          3,
		Minor:          1,
		Patch:          2,
		Config:         ConfigTLS | ConfigAES,
		SecureBoxMajor: 1,
		SecureBoxMinor: 3,
	}, info)
	assert.Equal(t, "applet 3.1.2 (secure box 1.3) features AES|TLS", info.String())

	for _, n := range []int{0, 6, 8} {
		assert.ErrorIs(t, info.UnmarshalResponse(make([]byte, n)), ErrTlv, "length %d", n)
	}
}
