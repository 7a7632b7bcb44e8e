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

package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Identity is a peer's durable Ed25519 signing key. The verify key is
// the canonical peer identity; Tag is the first four hex characters of
// it, a visual disambiguator only — the full verify key is what name
// binding and signature verification key off of.
type Identity struct {
	Name    string
	Tag     string
	PubKey  ed25519.PublicKey
	PrivKey ed25519.PrivateKey
}

// Tag returns the first four hex characters of an Ed25519 verify key.
func Tag(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)[:4]
}

// NewIdentity mints a fresh Ed25519 identity for the given display name.
func NewIdentity(name string) (*Identity, error) {
	kp, err := newEd25519Raw()
	if err != nil {
		return nil, err
	}
	return &Identity{
		Name:    name,
		Tag:     Tag(kp.pub),
		PubKey:  kp.pub,
		PrivKey: kp.priv,
	}, nil
}

// identityFile is the on-disk JSON shape for the identity file described
// in spec.md §6: {name, signing_key_hex}, written chmod 600.
type identityFile struct {
	Name          string `json:"name"`
	SigningKeyHex string `json:"signing_key_hex"`
}

// LoadIdentity reads the identity JSON file at path. If it does not
// exist, a fresh identity is minted for defaultName and persisted.
func LoadIdentity(path, defaultName string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		id, genErr := NewIdentity(defaultName)
		if genErr != nil {
			return nil, genErr
		}
		if saveErr := SaveIdentity(path, id); saveErr != nil {
			return nil, saveErr
		}
		return id, nil
	}
	if err != nil {
		return nil, fmt.Errorf("crypto: read identity file: %w", err)
	}

	var f identityFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("crypto: parse identity file: %w", err)
	}
	seed, err := hex.DecodeString(f.SigningKeyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: signing key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{
		Name:    f.Name,
		Tag:     Tag(pub),
		PubKey:  pub,
		PrivKey: priv,
	}, nil
}

// SaveIdentity persists the identity JSON file, chmod 600, creating
// parent directories as needed.
func SaveIdentity(path string, id *Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("crypto: create identity dir: %w", err)
	}
	f := identityFile{
		Name:          id.Name,
		SigningKeyHex: hex.EncodeToString(id.PrivKey.Seed()),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("crypto: marshal identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("crypto: write identity file: %w", err)
	}
	return nil
}

type rawEd25519 struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newEd25519Raw() (rawEd25519, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return rawEd25519{}, fmt.Errorf("crypto: generate ed25519 key: %w", err)
	}
	return rawEd25519{pub: pub, priv: priv}, nil
}
