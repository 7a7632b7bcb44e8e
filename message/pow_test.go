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
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMineProducesVerifiablePoW(t *testing.T) {
	miner := NewMiner(4)
	preimage := []byte("wisp test preimage")
	const difficulty = 12

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	nonceHex, powHash, err := miner.Mine(ctx, preimage, difficulty)
	require.NoError(t, err)
	assert.True(t, VerifyPoW(preimage, nonceHex, powHash, difficulty))
}

func TestMineCancelable(t *testing.T) {
	miner := NewMiner(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := miner.Mine(ctx, []byte("x"), 64)
	assert.ErrorIs(t, err, ErrMiningCanceled)
}

func TestVerifyPoWRejectsTamperedHash(t *testing.T) {
	preimage := []byte("wisp test preimage")
	nonce := make([]byte, 8)
	binary.BigEndian.PutUint64(nonce, 0)
	sum := sha256.Sum256(append(append([]byte{}, preimage...), nonce...))

	nonceHex := hex.EncodeToString(nonce)
	powHash := hex.EncodeToString(sum[:])

	// Flip a byte in the declared hash; recompute should no longer match.
	bad := []byte(powHash)
	if bad[0] == '0' {
		bad[0] = '1'
	} else {
		bad[0] = '0'
	}
	assert.False(t, VerifyPoW(preimage, nonceHex, string(bad), 1))
}

func TestMeetsDifficultyBoundary(t *testing.T) {
	// target(8) = 2^248. A hash of exactly 2^248 fails (not strictly
	// less); a hash of 2^248 - 1 passes.
	atThreshold := make([]byte, 32)
	atThreshold[0] = 0x01 // 2^248
	assert.False(t, meetsDifficulty(atThreshold, 8))

	belowThreshold := make([]byte, 32)
	for i := 1; i < 32; i++ {
		belowThreshold[i] = 0xff
	}
	assert.True(t, meetsDifficulty(belowThreshold, 8))
}
