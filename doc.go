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

/*
Package se05x is a host driver for NXP SE05x secure elements attached over
I2C.

The chip speaks ISO 7816 APDUs carried by the T=1 over I2C block protocol
(NXP UM11225). Package t1 implements the block layer; this package selects
the IoT applet, runs commands and maps every failure to a status word.

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-se05x"
	    "github.com/ZaparooProject/go-se05x/transport/i2c"
	)

	bus, err := i2c.Open("/dev/i2c-1")
	if err != nil {
	    log.Fatal(err)
	}

	device, err := se05x.New(bus)
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	applet, err := device.Enable()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(applet)

	buf := make([]byte, 64)
	var random se05x.GetRandomResponse
	if err := device.Run(se05x.GetRandom{Length: 16}, &random, buf); err != nil {
	    log.Fatal(err)
	}

Sessions:

CreateSession opens an applet session bound to an authentication object.
AuthenticateAES128Session then runs the SCP03 handshake within it, and
RunWithinSession sends further commands wrapped for that session.

	var created se05x.CreateSessionResponse
	err = device.Run(se05x.CreateSession{Object: id}, &created, buf)
	session := se05x.NewSession(created.SessionID)
	ok, err := device.AuthenticateAES128Session(session, key, nil)

Responses:

Response parsers may keep slices of the buffer passed to Run. Copy what you
need before reusing the buffer.

Error Handling:

Chip status words other than 0x9000 are returned as *StatusError. Link
failures wrap the t1 sentinels. ErrorStatus folds any error into a status
word, with host-side failures in reserved ranges below 0x3000:

	if errors.Is(err, t1.ErrTimeout) {
	    // the chip never answered
	}
	status := se05x.ErrorStatus(err)

Nothing resynchronizes the link automatically after a failure. Call
Resync or Enable to recover.

Thread Safety:

Device operations are not thread-safe. If you need concurrent access,
implement appropriate synchronization in your application.
*/
package se05x
