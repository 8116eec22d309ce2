package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// SeedFileName is the encrypted seed file inside the data directory.
const SeedFileName = "wallet.enc"

// SaveSeed encrypts seed with password and writes it to path with 0600
// permissions, creating the parent directory if needed.
func SaveSeed(path string, seed []byte, password string) error {
	enc, err := EncryptSeed(seed, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("wallet: create directory: %w", err)
	}
	if err := os.WriteFile(path, enc, 0600); err != nil {
		return fmt.Errorf("wallet: write seed: %w", err)
	}
	return nil
}

// LoadSeed reads and decrypts the seed stored at path.
func LoadSeed(path, password string) ([]byte, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSeedNotFound, path)
		}
		return nil, fmt.Errorf("wallet: read seed: %w", err)
	}
	return DecryptSeed(enc, password)
}

// AccountFromHex builds an Account from a raw hex private key, with or
// without the 0x prefix. The returned Path is empty.
func AccountFromHex(s string) (*Account, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &Account{PrivateKey: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}
