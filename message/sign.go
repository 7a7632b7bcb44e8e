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

package message

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
)

// Sign computes the signature preimage (which includes nonce and
// pow_hash, so it must run after mining) and sets m.Signature. It also
// stamps author_name/tag/pubkey from id, so callers normally invoke
// this as the last step of Build.
func Sign(m *Message, id *wispcrypto.Identity) error {
	m.AuthorName = id.Name
	m.AuthorTag = id.Tag
	m.AuthorPubkey = hex.EncodeToString(id.PubKey)

	preimage, err := SigPreimage(m)
	if err != nil {
		return fmt.Errorf("message: build signature preimage: %w", err)
	}
	m.Signature = hex.EncodeToString(ed25519.Sign(id.PrivKey, preimage))
	return nil
}

// VerifySignature checks m.Signature against m.AuthorPubkey over the
// signature preimage.
func VerifySignature(m *Message) bool {
	pub, err := hex.DecodeString(m.AuthorPubkey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(m.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	preimage, err := SigPreimage(m)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), preimage, sig)
}
