// Copyright (C) 2025 wisp-mesh
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package crypto provides the cryptographic primitives shared by Wisp's
// gossip core: the KeyPair abstraction, Ed25519 identity keys, and
// Ed25519-to-X25519 conversion.
//
// Key-pair implementations live in crypto/keys to avoid a circular
// import (keys implementations refer back to the KeyType/KeyPair types
// declared here). crypto/seal builds the anonymous sealed-box and room
// secret-box primitives on top of both.
package crypto

import "errors"

var (
	// ErrInvalidSignature is returned when a signature fails verification.
	ErrInvalidSignature = errors.New("crypto: invalid signature")
	// ErrSignNotSupported is returned by key types that cannot sign (X25519).
	ErrSignNotSupported = errors.New("crypto: key type does not support signing")
	// ErrVerifyNotSupported is returned by key types that cannot verify (X25519).
	ErrVerifyNotSupported = errors.New("crypto: key type does not support verification")
)
