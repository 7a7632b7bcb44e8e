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

package seal

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// RoomKeySize is the width of the symmetric room key shared by every
// peer currently attached to one relay (spec.md §4.4).
const RoomKeySize = 32

// NewRoomKey generates a fresh random room key.
func NewRoomKey() ([]byte, error) {
	key := make([]byte, RoomKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("seal: generate room key: %w", err)
	}
	return key, nil
}

// SecretBox seals plaintext under the room key using ChaCha20-Poly1305,
// the AEAD the teacher's session layer already builds on top of
// golang.org/x/crypto/hkdf/chacha20poly1305 — here applied directly to
// the room key rather than an HKDF-derived per-session key, since every
// relay member must decrypt with the same symmetric key. Output is
// nonce(12) || ciphertext.
func SecretBox(roomKey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(roomKey)
	if err != nil {
		return nil, fmt.Errorf("seal: init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ct...), nil
}

// OpenSecretBox reverses SecretBox.
func OpenSecretBox(roomKey, envelope []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(roomKey)
	if err != nil {
		return nil, fmt.Errorf("seal: init aead: %w", err)
	}
	if len(envelope) < aead.NonceSize() {
		return nil, fmt.Errorf("seal: envelope too short")
	}
	nonce, ct := envelope[:aead.NonceSize()], envelope[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}
