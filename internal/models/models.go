// Package models defines the records stored by walletdb.
package models

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/maruel/ksid"
)

// MaxPubKeys is the largest number of keys a standard multisig script accepts.
const MaxPubKeys = 15

// Network identifies the chain a wallet belongs to.
type Network string

const (
	// NetworkMainnet is the production network.
	NetworkMainnet Network = "mainnet"
	// NetworkTestnet is the public test network.
	NetworkTestnet Network = "testnet"
	// NetworkRegtest is a local regression test network.
	NetworkRegtest Network = "regtest"
)

// Validate checks that n is a known network.
func (n Network) Validate() error {
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkRegtest:
		return nil
	default:
		return fmt.Errorf("unknown network %q", string(n))
	}
}

// MultiSigWallet describes an m-of-n multisig wallet.
//
// The descriptor is opaque to storage: keys and address are kept as given.
type MultiSigWallet struct {
	ID       ksid.ID   `json:"id" yaml:"id,omitempty" jsonschema:"description=Unique wallet identifier"`
	Name     string    `json:"name" yaml:"name" jsonschema:"description=Display name"`
	Network  Network   `json:"network" yaml:"network" jsonschema:"description=Chain the wallet belongs to (mainnet/testnet/regtest)"`
	Required int       `json:"required" yaml:"required" jsonschema:"description=Number of signatures required to spend (m)"`
	PubKeys  []string  `json:"pub_keys" yaml:"pub_keys" jsonschema:"description=Hex encoded public keys of the n cosigners"`
	Address  string    `json:"address,omitempty" yaml:"address,omitempty" jsonschema:"description=Funding address derived from the keys"`
	Created  time.Time `json:"created" yaml:"created,omitempty" jsonschema:"description=Creation timestamp"`
}

// Equal reports whether w and other hold the same field values.
func (w MultiSigWallet) Equal(other MultiSigWallet) bool {
	return w.ID == other.ID &&
		w.Name == other.Name &&
		w.Network == other.Network &&
		w.Required == other.Required &&
		slices.Equal(w.PubKeys, other.PubKeys) &&
		w.Address == other.Address &&
		w.Created.Equal(other.Created)
}

// Validate checks the descriptor is a plausible m-of-n wallet.
func (w *MultiSigWallet) Validate() error {
	if w.ID.IsZero() {
		return errors.New("id is required")
	}
	if w.Name == "" {
		return errors.New("name is required")
	}
	if err := w.Network.Validate(); err != nil {
		return err
	}
	n := len(w.PubKeys)
	if n == 0 || n > MaxPubKeys {
		return fmt.Errorf("pub_keys: need between 1 and %d keys, got %d", MaxPubKeys, n)
	}
	if w.Required < 1 || w.Required > n {
		return fmt.Errorf("required must be between 1 and %d, got %d", n, w.Required)
	}
	seen := make(map[string]struct{}, n)
	for i, k := range w.PubKeys {
		b, err := hex.DecodeString(k)
		if err != nil {
			return fmt.Errorf("pub_keys[%d]: %w", i, err)
		}
		if len(b) != 33 && len(b) != 65 {
			return fmt.Errorf("pub_keys[%d]: want 33 or 65 bytes, got %d", i, len(b))
		}
		if _, ok := seen[k]; ok {
			return fmt.Errorf("pub_keys[%d]: duplicate key", i)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// String returns a short "m-of-n name" description.
func (w *MultiSigWallet) String() string {
	return fmt.Sprintf("%d-of-%d %s", w.Required, len(w.PubKeys), w.Name)
}
