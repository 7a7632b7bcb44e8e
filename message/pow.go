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
	"errors"
	"math/big"
	"sync"
)

// ErrMiningCanceled is returned by Mine when ctx is canceled before a
// nonce satisfying the difficulty target is found.
var ErrMiningCanceled = errors.New("message: mining canceled")

// target returns 2^(256-difficulty), the threshold a pow_hash must fall
// strictly below.
func target(difficulty int) *big.Int {
	t := big.NewInt(1)
	t.Lsh(t, uint(256-difficulty))
	return t
}

// meetsDifficulty reports whether hash, read as a big-endian 256-bit
// integer, is strictly less than 2^(256-difficulty).
func meetsDifficulty(hash []byte, difficulty int) bool {
	h := new(big.Int).SetBytes(hash)
	return h.Cmp(target(difficulty)) < 0
}

// Miner mines hashcash-style proofs of work on a fixed-size worker pool,
// keeping that CPU-bound work off any I/O goroutine per spec.md §5/§9.
type Miner struct {
	Workers int
}

// NewMiner returns a Miner with the given worker count (clamped to at
// least 1).
func NewMiner(workers int) *Miner {
	if workers < 1 {
		workers = 1
	}
	return &Miner{Workers: workers}
}

// Mine searches for a 64-bit nonce such that SHA256(preimage || nonce)
// is below the difficulty target, returning the nonce (as 16 lowercase
// hex characters) and the resulting hash (as 64 lowercase hex
// characters). It fans the search out across m.Workers goroutines, each
// scanning a disjoint residue class of the nonce space upward from its
// worker index, and returns as soon as any worker finds a solution.
// With one worker that is the smallest satisfying nonce; with more, the
// returned nonce is the first one found and need not be the smallest.
func (m *Miner) Mine(ctx context.Context, preimage []byte, difficulty int) (nonceHex string, powHash string, err error) {
	workers := m.Workers
	if workers < 1 {
		workers = 1
	}

	type result struct {
		nonce uint64
		hash  []byte
	}

	found := make(chan result, 1)
	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start uint64) {
			defer wg.Done()
			buf := make([]byte, 8)
			nonce := start
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					closeDone()
					return
				default:
				}

				binary.BigEndian.PutUint64(buf, nonce)
				h := sha256.New()
				h.Write(preimage)
				h.Write(buf)
				sum := h.Sum(nil)

				if meetsDifficulty(sum, difficulty) {
					select {
					case found <- result{nonce: nonce, hash: sum}:
						closeDone()
					default:
					}
					return
				}

				nonce += uint64(workers)
			}
		}(uint64(w))
	}

	wg.Wait()

	select {
	case r := <-found:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, r.nonce)
		return hex.EncodeToString(buf), hex.EncodeToString(r.hash), nil
	default:
		return "", "", ErrMiningCanceled
	}
}

// VerifyPoW recomputes SHA256(preimage || nonce) and checks it against
// the declared hash and difficulty threshold. This is constant work:
// exactly one hash.
func VerifyPoW(preimage []byte, nonceHex, powHashHex string, difficulty int) bool {
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != 8 {
		return false
	}
	declared, err := hex.DecodeString(powHashHex)
	if err != nil || len(declared) != sha256.Size {
		return false
	}

	h := sha256.New()
	h.Write(preimage)
	h.Write(nonce)
	sum := h.Sum(nil)

	if string(sum) != string(declared) {
		return false
	}
	return meetsDifficulty(sum, difficulty)
}
