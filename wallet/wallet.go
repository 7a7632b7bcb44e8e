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

// Package wallet is the optional on-chain side channel spec.md §1 calls
// out as adjacent to, not part of, the gossip core: an Ethereum-style
// address a peer may advertise to a relay (relay_wallet) or use to
// submit proof-of-work receipts and fetch relay URLs from a registry.
// Nothing in message, store, netp2p, or relay depends on this package.
package wallet

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
)

// Wallet wraps a secp256k1 keypair and its derived address. It is kept
// deterministic from a peer's durable Ed25519 identity so no second
// secret needs separate backup.
type Wallet struct {
	PrivateKey *ecdsa.PrivateKey
	Address    string
}

// FromIdentity derives a secp256k1 keypair from id's Ed25519 seed via
// SHA-256, and the corresponding Ethereum-style address. Deterministic:
// the same identity always yields the same wallet.
func FromIdentity(id *wispcrypto.Identity) (*Wallet, error) {
	seed := sha256.Sum256(append([]byte("wisp-wallet-v1"), id.PrivKey.Seed()...))
	priv, err := ethcrypto.ToECDSA(seed[:])
	if err != nil {
		return nil, fmt.Errorf("wallet: derive secp256k1 key: %w", err)
	}
	return &Wallet{
		PrivateKey: priv,
		Address:    ethcrypto.PubkeyToAddress(priv.PublicKey).Hex(),
	}, nil
}

// walletFile is the on-disk JSON shape for the wallet file spec.md §6
// mentions alongside the identity and peers files: a simple blob read
// once at start.
type walletFile struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key_hex"`
}

// Load reads the wallet JSON file at path, deriving and persisting one
// from id if it does not yet exist.
func Load(path string, id *wispcrypto.Identity) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		w, genErr := FromIdentity(id)
		if genErr != nil {
			return nil, genErr
		}
		if saveErr := Save(path, w); saveErr != nil {
			return nil, saveErr
		}
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wallet: read wallet file: %w", err)
	}

	var f walletFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("wallet: parse wallet file: %w", err)
	}
	keyBytes, err := hex.DecodeString(f.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("wallet: decode private key: %w", err)
	}
	priv, err := ethcrypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("wallet: reconstruct private key: %w", err)
	}
	return &Wallet{PrivateKey: priv, Address: f.Address}, nil
}

// Save persists the wallet JSON file, chmod 600.
func Save(path string, w *Wallet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("wallet: create wallet dir: %w", err)
	}
	f := walletFile{
		Address:    w.Address,
		PrivateKey: hex.EncodeToString(ethcrypto.FromECDSA(w.PrivateKey)),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("wallet: marshal wallet: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("wallet: write wallet file: %w", err)
	}
	return nil
}

// SignPoWReceipt signs digest (typically a message's pow_hash) with the
// wallet's secp256k1 key, for submission to the optional on-chain PoW
// receipt side channel. Returns the 65-byte [R || S || V] signature.
func (w *Wallet) SignPoWReceipt(digest []byte) ([]byte, error) {
	return ethcrypto.Sign(digest, w.PrivateKey)
}
