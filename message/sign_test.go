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
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
)

func TestSignAndVerifySignature(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)

	m := &Message{
		ID:          NewID(),
		PrevHash:    GenesisHash,
		Content:     "hello",
		ContentType: ContentText,
		Timestamp:   1700000000,
		TTL:         DefaultTTL,
		Board:       "general",
		Nonce:       "0000000000000001",
		PowHash:     "ff",
	}

	require.NoError(t, Sign(m, id))
	assert.Equal(t, id.Name, m.AuthorName)
	assert.Equal(t, id.Tag, m.AuthorTag)
	assert.NotEmpty(t, m.Signature)
	assert.True(t, VerifySignature(m))
}

func TestVerifySignatureRejectsTamperedContent(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)

	m := &Message{
		ID:          NewID(),
		PrevHash:    GenesisHash,
		Content:     "hello",
		ContentType: ContentText,
		Timestamp:   1700000000,
		TTL:         DefaultTTL,
		Nonce:       "0000000000000001",
		PowHash:     "ff",
	}
	require.NoError(t, Sign(m, id))

	m.Content = "goodbye"
	assert.False(t, VerifySignature(m))
}

func TestVerifySignatureRejectsMismatchedKey(t *testing.T) {
	id1, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	id2, err := wispcrypto.NewIdentity("bolt")
	require.NoError(t, err)

	m := &Message{
		ID:          NewID(),
		PrevHash:    GenesisHash,
		Content:     "hello",
		ContentType: ContentText,
		Timestamp:   1700000000,
		TTL:         DefaultTTL,
		Nonce:       "0000000000000001",
		PowHash:     "ff",
	}
	require.NoError(t, Sign(m, id1))

	// Swap in a different author's pubkey without re-signing.
	m.AuthorPubkey = hex.EncodeToString(id2.PubKey)
	assert.False(t, VerifySignature(m))
}
