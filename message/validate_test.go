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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
)

const testDifficulty = 8

func buildTestMessage(t *testing.T, id *wispcrypto.Identity, now float64, mutate func(*Draft)) *Message {
	t.Helper()
	d := Draft{
		Content:     "hello",
		ContentType: ContentText,
		Board:       "general",
		TTL:         DefaultTTL,
	}
	if mutate != nil {
		mutate(&d)
	}
	m, err := Build(context.Background(), d, id, NewMiner(2), testDifficulty, now, 0)
	require.NoError(t, err)
	return m
}

type fakeBinder struct{ conflict bool }

func (f fakeBinder) Conflicts(name, tag, pubkeyHex string) bool { return f.conflict }

func TestValidateAcceptsWellFormedMessage(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	m := buildTestMessage(t, id, 1700000000, nil)

	err = Validate(m, 1700000001, testDifficulty, "", nil)
	assert.NoError(t, err)
}

func TestValidateRejectsOversizedContent(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	m := buildTestMessage(t, id, 1700000000, func(d *Draft) {
		d.Content = strings.Repeat("a", MaxContentLen+1)
	})

	err = Validate(m, 1700000001, testDifficulty, "", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RejectOversized, verr.Reason)
}

func TestValidateAllowsOversizedFileContent(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	m := buildTestMessage(t, id, 1700000000, func(d *Draft) {
		d.ContentType = ContentFile
		d.Content = strings.Repeat("a", MaxContentLen+1)
		d.FileName = "big.bin"
	})

	err = Validate(m, 1700000001, testDifficulty, "", nil)
	assert.NoError(t, err)
}

func TestValidateRejectsExpiredMessage(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	m := buildTestMessage(t, id, 1000, func(d *Draft) {
		d.TTL = 60
	})

	// Exactly at the boundary (timestamp+ttl == now) is expired.
	err = Validate(m, 1060, testDifficulty, "", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RejectExpired, verr.Reason)

	// One second before the boundary is still live.
	assert.NoError(t, Validate(m, 1059, testDifficulty, "", nil))
}

func TestValidateRejectsBadPoW(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	m := buildTestMessage(t, id, 1700000000, nil)

	m.PowHash = "00000000000000000000000000000000000000000000000000000000000000"[:64]

	err = Validate(m, 1700000001, testDifficulty, "", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RejectBadPoW, verr.Reason)
}

func TestValidateRejectsBadSignature(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	m := buildTestMessage(t, id, 1700000000, nil)

	m.Signature = m.Signature[:len(m.Signature)-2] + "00"

	err = Validate(m, 1700000001, testDifficulty, "", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RejectBadSig, verr.Reason)
}

func TestValidateRejectsSelfAuthoredLoopback(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	m := buildTestMessage(t, id, 1700000000, nil)

	err = Validate(m, 1700000001, testDifficulty, m.AuthorPubkey, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RejectSelf, verr.Reason)
}

func TestValidateRejectsTagPubkeyMismatch(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	m := buildTestMessage(t, id, 1700000000, nil)

	m.AuthorTag = "ffff"

	err = Validate(m, 1700000001, testDifficulty, "", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RejectTagMismatch, verr.Reason)
}

func TestValidateRejectsClaimedName(t *testing.T) {
	id, err := wispcrypto.NewIdentity("zed")
	require.NoError(t, err)
	m := buildTestMessage(t, id, 1700000000, nil)

	err = Validate(m, 1700000001, testDifficulty, "", fakeBinder{conflict: true})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RejectNameClaimed, verr.Reason)
}
