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

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	wispcrypto "github.com/wisp-mesh/wisp/crypto"
	"github.com/wisp-mesh/wisp/wallet"
)

var rootCmd = &cobra.Command{
	Use:   "wisp-keygen",
	Short: "Generate and inspect Wisp peer identities",
	Long: `wisp-keygen mints and inspects the Ed25519 identity a wisp node
signs every message with, and the optional secp256k1 wallet derived
from it.`,
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	genName  string
	genPath  string
	genForce bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new identity and write it to disk",
	Example: `  # Generate a fresh identity for "alice"
  wisp-keygen generate --name alice --out .wisp/identity.json`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&genName, "name", "n", "anonymous", "display name to bind the identity to")
	generateCmd.Flags().StringVarP(&genPath, "out", "o", ".wisp/identity.json", "identity file path")
	generateCmd.Flags().BoolVarP(&genForce, "force", "f", false, "overwrite an existing identity file")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if !genForce {
		if _, err := os.Stat(genPath); err == nil {
			return fmt.Errorf("identity file %s already exists (use --force to overwrite)", genPath)
		}
	}

	id, err := wispcrypto.NewIdentity(genName)
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}
	if err := wispcrypto.SaveIdentity(genPath, id); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}

	fmt.Printf("Identity generated:\n")
	fmt.Printf("  Name:    %s\n", id.Name)
	fmt.Printf("  Tag:     %s\n", id.Tag)
	fmt.Printf("  Pubkey:  %s\n", hex.EncodeToString(id.PubKey))
	fmt.Printf("  Saved to: %s\n", genPath)
	return nil
}

var showPath string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the identity on disk without modifying it",
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showPath, "path", "p", ".wisp/identity.json", "identity file path")
}

func runShow(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(showPath); err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	id, err := wispcrypto.LoadIdentity(showPath, "anonymous")
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	fmt.Printf("Name:    %s#%s\n", id.Name, id.Tag)
	fmt.Printf("Pubkey:  %s\n", hex.EncodeToString(id.PubKey))
	return nil
}

var (
	walletIdentityPath string
	walletPath         string
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Derive or show the optional on-chain wallet for an identity",
	Long: `The wallet is the optional side channel an identity may use to
submit proof-of-work receipts or advertise a relay_wallet address; the
gossip core never depends on it.`,
	RunE: runWallet,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.Flags().StringVarP(&walletIdentityPath, "identity", "i", ".wisp/identity.json", "identity file path")
	walletCmd.Flags().StringVarP(&walletPath, "out", "o", ".wisp/wallet.json", "wallet file path")
}

func runWallet(cmd *cobra.Command, args []string) error {
	id, err := wispcrypto.LoadIdentity(walletIdentityPath, "anonymous")
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	w, err := wallet.Load(walletPath, id)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	fmt.Printf("Address: %s\n", w.Address)
	fmt.Printf("Saved to: %s\n", walletPath)
	return nil
}
