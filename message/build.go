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
	"encoding/hex"
	"fmt"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
)

// Draft is the set of sender-supplied fields needed to build an
// outbound Message; everything else (id, pow witness, signature) is
// derived by Build.
type Draft struct {
	PrevHash    string
	Content     string
	ContentType ContentType
	Board       string
	ThreadID    string
	ThreadTitle string
	ReplyTo     string
	TTL         int

	FileName string
	FileData string
	FileSize int
}

// Build mines proof of work for d and signs the result with id,
// producing a Message ready to broadcast. now is the Unix timestamp
// (seconds) to stamp on the message; it is the caller's responsibility
// to use a consistent clock source (messages are never built with a
// fake clock in production). seq is the author's own monotonic
// message counter (see Message.Seq); callers that don't track one can
// pass 0.
func Build(ctx context.Context, d Draft, id *wispcrypto.Identity, miner *Miner, difficulty int, now float64, seq int64) (*Message, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m := &Message{
		ID:          NewID(),
		PrevHash:    d.PrevHash,
		Content:     d.Content,
		ContentType: d.ContentType,
		Timestamp:   now,
		TTL:         ttl,
		Board:       d.Board,
		ThreadID:    d.ThreadID,
		ThreadTitle: d.ThreadTitle,
		ReplyTo:     d.ReplyTo,
		Seq:         seq,
		FileName:    d.FileName,
		FileData:    d.FileData,
		FileSize:    d.FileSize,
	}
	if m.PrevHash == "" {
		m.PrevHash = GenesisHash
	}
	// author_name/tag/pubkey are stamped by Sign, but the PoW preimage
	// includes them, so stamp them before mining too.
	m.AuthorName = id.Name
	m.AuthorTag = id.Tag
	m.AuthorPubkey = hex.EncodeToString(id.PubKey)

	preimage, err := PowPreimage(m)
	if err != nil {
		return nil, fmt.Errorf("message: build pow preimage: %w", err)
	}

	nonceHex, powHash, err := miner.Mine(ctx, preimage, difficulty)
	if err != nil {
		return nil, fmt.Errorf("message: mine: %w", err)
	}
	m.Nonce = nonceHex
	m.PowHash = powHash

	if err := Sign(m, id); err != nil {
		return nil, fmt.Errorf("message: sign: %w", err)
	}
	return m, nil
}
