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

// Package seal implements two authenticated-encryption primitives on
// top of crypto/keys: an anonymous sealed box addressed to a single
// Ed25519 identity, and the symmetric secret box the relay privacy
// layer (spec.md §4.4) uses to encrypt gossip envelopes under the
// shared room key.
package seal

import (
	"crypto"
	"crypto/ed25519"

	"github.com/wisp-mesh/wisp/crypto/keys"
)

// Anonymous seals plaintext so that only the holder of the Ed25519
// private key behind peerPub can open it, and the opener learns nothing
// about who sealed it — the sender's own identity never appears in the
// packet. The relay's key_share frame does not use it: a relay client
// only knows the requester's raw X25519 curve_pk, so the relay package
// seals the room key against that key with its own helper.
func Anonymous(peerPub ed25519.PublicKey, plaintext []byte) ([]byte, error) {
	return keys.EncryptWithEd25519Peer(crypto.PublicKey(peerPub), plaintext)
}

// OpenAnonymous reverses Anonymous using the recipient's Ed25519
// private key.
func OpenAnonymous(priv ed25519.PrivateKey, sealed []byte) ([]byte, error) {
	return keys.DecryptWithEd25519Peer(crypto.PrivateKey(priv), sealed)
}
