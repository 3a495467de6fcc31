// Package keys loads and creates the hot wallet keypair. Keys come from a
// solana-keygen JSON file with owner-only permissions, or from the
// RAFFLED_HOT_WALLET_KEY environment variable holding the base58 secret.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/constant"
)

// LoadHotWallet returns the hot wallet key. The environment variable wins
// over the key file.
func LoadHotWallet(keyFile string, log zerolog.Logger) (solana.PrivateKey, error) {
	if secret := os.Getenv(constant.HotWalletKeyEnv); secret != "" {
		key, err := ParseBase58Secret(secret)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", constant.HotWalletKeyEnv, err)
		}
		log.Info().Str("source", "env").Str("pubkey", key.PublicKey().String()).Msg("hot wallet loaded")
		return key, nil
	}

	if keyFile == "" {
		return nil, fmt.Errorf("no hot wallet configured: set %s or hot_wallet_key_file", constant.HotWalletKeyEnv)
	}
	if err := ValidateKeyFile(keyFile); err != nil {
		return nil, err
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(filepath.Clean(keyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	log.Info().Str("source", "file").Str("pubkey", key.PublicKey().String()).Msg("hot wallet loaded")
	return key, nil
}

// ParseBase58Secret decodes a 64-byte ed25519 secret key.
func ParseBase58Secret(secret string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("secret is not base58: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("secret must be 64 bytes, got %d", len(raw))
	}
	derived := ed25519.NewKeyFromSeed(raw[:32])
	if !bytes.Equal(derived[32:], raw[32:]) {
		return nil, fmt.Errorf("secret public half does not match its seed")
	}
	return solana.PrivateKey(raw), nil
}

// GenerateKeyFile writes a fresh keypair in solana-keygen format. An existing
// file is never overwritten.
func GenerateKeyFile(path string, log zerolog.Logger) (solana.PublicKey, error) {
	if _, err := os.Stat(path); err == nil {
		return solana.PublicKey{}, fmt.Errorf("key file already exists: %s", path)
	}
	if err := ValidateKeyDirectory(filepath.Dir(path), log); err != nil {
		return solana.PublicKey{}, err
	}

	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to generate key: %w", err)
	}

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to encode key: %w", err)
	}
	if err := os.WriteFile(path, data, keyFilePerms); err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to write key file: %w", err)
	}

	log.Info().Str("path", path).Str("pubkey", key.PublicKey().String()).Msg("hot wallet key generated")
	return key.PublicKey(), nil
}
