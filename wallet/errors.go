package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidWordCount indicates a mnemonic length other than 12 or 24 words.
	ErrInvalidWordCount = errors.New("wallet: mnemonic must be 12 or 24 words")

	// ErrIndexOutOfRange indicates an account index exceeds the BIP32 non-hardened max.
	ErrIndexOutOfRange = errors.New("wallet: index exceeds maximum (2^31-1)")

	// ErrInvalidPath indicates a derivation path could not be parsed.
	ErrInvalidPath = errors.New("wallet: invalid derivation path")

	// ErrDecryptionFailed indicates wrong password or corrupted wallet data.
	ErrDecryptionFailed = errors.New("wallet: seed decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates seed checksum verification failed after decryption.
	ErrChecksumMismatch = errors.New("wallet: seed checksum mismatch")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrInvalidKey indicates a raw private key could not be parsed.
	ErrInvalidKey = errors.New("wallet: invalid private key")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrSeedNotFound indicates no encrypted seed file exists.
	ErrSeedNotFound = errors.New("wallet: encrypted seed not found")
)
