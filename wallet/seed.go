// Package wallet holds the operator's signing key. Keys come from a BIP39
// mnemonic derived along m/44'/60'/0'/0/{index}, or from a raw hex key, and
// the seed is stored at rest with Argon2id + AES-256-GCM.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	"golang.org/x/crypto/argon2"
)

// Mnemonic lengths accepted by GenerateMnemonic.
const (
	DefaultWords = 12
	MaxWords     = 24
)

// Seed file encryption. Changing any of these makes existing wallet.enc
// files unreadable.
const (
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // KiB
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	SaltLen     = 16
	NonceLen    = 12
	ChecksumLen = 4
)

// GenerateMnemonic returns a fresh BIP39 phrase of 12 or 24 words, the two
// lengths hardware wallets and browser extensions import.
func GenerateMnemonic(words int) (string, error) {
	if words != DefaultWords && words != MaxWords {
		return "", fmt.Errorf("%w: got %d", ErrInvalidWordCount, words)
	}
	// Each word carries 11 bits: 32 bits of entropy per 3 words.
	entropy, err := bip39.NewEntropy(words / 3 * 32)
	if err != nil {
		return "", fmt.Errorf("wallet: entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// normalizeMnemonic collapses the whitespace a pasted phrase tends to carry.
func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

// ValidateMnemonic reports whether mnemonic is a well-formed BIP39 phrase.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(mnemonic))
}

// SeedFromMnemonic turns a phrase (and optional BIP39 passphrase) into the
// 64-byte seed the HD wallet is rooted at. The same phrase yields the same
// addresses as any standard EVM wallet.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	mnemonic = normalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	return seed, nil
}

// EncryptSeed encrypts the seed with Argon2id + AES-256-GCM.
//
// Output format: salt(16B) || nonce(12B) || AES-GCM(argon2id(password,salt), nonce, seed||checksum)
//
// The checksum is SHA256(seed)[:4] for verifying correct decryption.
func EncryptSeed(seed []byte, password string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate salt: %w", err)
	}
	gcm, err := seedCipher(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate nonce: %w", err)
	}

	sum := sha256.Sum256(seed)
	plaintext := append(append([]byte{}, seed...), sum[:ChecksumLen]...)

	out := make([]byte, 0, SaltLen+NonceLen+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// DecryptSeed reverses EncryptSeed. A wrong password surfaces as
// ErrDecryptionFailed; a payload that decrypts but fails the checksum
// surfaces as ErrChecksumMismatch.
func DecryptSeed(encrypted []byte, password string) ([]byte, error) {
	if len(encrypted) < SaltLen+NonceLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}
	salt := encrypted[:SaltLen]
	nonce := encrypted[SaltLen : SaltLen+NonceLen]

	gcm, err := seedCipher(password, salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, nonce, encrypted[SaltLen+NonceLen:], nil)
	if err != nil || len(plaintext) < ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	seed := plaintext[:len(plaintext)-ChecksumLen]
	sum := sha256.Sum256(seed)
	if subtle.ConstantTimeCompare(sum[:ChecksumLen], plaintext[len(seed):]) != 1 {
		return nil, ErrChecksumMismatch
	}
	return seed, nil
}

// seedCipher derives the AES-256-GCM cipher for password and salt.
func seedCipher(password string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: GCM creation failed: %w", err)
	}
	return gcm, nil
}
