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

package relay

import (
	"fmt"

	"github.com/wisp-mesh/wisp/crypto/keys"
)

// gcmNonceSize matches the AES-GCM nonce width X25519KeyPair.Encrypt
// produces (crypto/cipher.NewGCM's standard nonce size).
const gcmNonceSize = 12

// curvePubSize is the width of a raw X25519 public key.
const curvePubSize = 32

// sealToCurvePK anonymously seals plaintext to a raw X25519 public key:
// a fresh ephemeral X25519 keypair performs ECDH against recipientPub,
// and the ephemeral public key travels alongside the ciphertext so the
// recipient can repeat the ECDH. Unlike keys.EncryptWithEd25519Peer,
// this never touches an Ed25519 identity — the relay only ever sees
// curve_pk, already in X25519 form. Output is ephPub(32) || nonce || ct.
func sealToCurvePK(recipientPub, plaintext []byte) ([]byte, error) {
	if len(recipientPub) != curvePubSize {
		return nil, fmt.Errorf("relay: recipient curve key must be %d bytes", curvePubSize)
	}
	ephKP, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, err
	}
	eph, ok := ephKP.(*keys.X25519KeyPair)
	if !ok {
		return nil, fmt.Errorf("relay: unexpected ephemeral keypair type")
	}
	nonce, ct, err := eph.Encrypt(recipientPub, plaintext)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, curvePubSize+len(nonce)+len(ct))
	out = append(out, eph.PublicBytesKey()...)
	out = append(out, nonce...)
	out = append(out, ct...)
	return out, nil
}

// openFromCurvePK reverses sealToCurvePK using self's own X25519
// private key.
func openFromCurvePK(self *keys.X25519KeyPair, sealed []byte) ([]byte, error) {
	if len(sealed) < curvePubSize+gcmNonceSize {
		return nil, fmt.Errorf("relay: sealed payload too short")
	}
	ephPub := sealed[:curvePubSize]
	nonce := sealed[curvePubSize : curvePubSize+gcmNonceSize]
	ct := sealed[curvePubSize+gcmNonceSize:]
	return self.DecryptWithX25519(ephPub, nonce, ct)
}
