package wallet

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mnemonic tests ---

func TestGenerateMnemonic_12Words(t *testing.T) {
	mnemonic, err := GenerateMnemonic(DefaultWords)
	require.NoError(t, err)

	words := strings.Fields(mnemonic)
	assert.Len(t, words, 12, "12-word mnemonic should have 12 words")
	assert.True(t, ValidateMnemonic(mnemonic), "generated mnemonic should be valid")
}

func TestGenerateMnemonic_24Words(t *testing.T) {
	mnemonic, err := GenerateMnemonic(MaxWords)
	require.NoError(t, err)

	words := strings.Fields(mnemonic)
	assert.Len(t, words, 24, "24-word mnemonic should have 24 words")
	assert.True(t, ValidateMnemonic(mnemonic), "generated mnemonic should be valid")
}

func TestGenerateMnemonic_InvalidWordCount(t *testing.T) {
	for _, n := range []int{0, 11, 18, 128} {
		_, err := GenerateMnemonic(n)
		assert.ErrorIs(t, err, ErrInvalidWordCount, "words=%d", n)
	}
}

func TestGenerateMnemonic_Unique(t *testing.T) {
	m1, err := GenerateMnemonic(DefaultWords)
	require.NoError(t, err)

	m2, err := GenerateMnemonic(DefaultWords)
	require.NoError(t, err)

	assert.NotEqual(t, m1, m2, "two generated mnemonics should be different")
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"valid 12-word", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", true},
		{"invalid words", "foo bar baz qux quux corge grault garply waldo fred plugh xyzzy", false},
		{"empty", "", false},
		{"partial", "abandon abandon", false},
		{"extra whitespace", "  abandon abandon abandon abandon abandon abandon\n abandon abandon abandon abandon abandon  about ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateMnemonic(tt.mnemonic))
		})
	}
}

// --- Seed derivation tests ---

func TestSeedFromMnemonic_NormalizesWhitespace(t *testing.T) {
	clean := "test test test test test test test test test test test junk"
	messy := "test  test test\ttest test test test test test test test\njunk "

	want, err := SeedFromMnemonic(clean, "")
	require.NoError(t, err)
	got, err := SeedFromMnemonic(messy, "")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSeedFromMnemonic_Deterministic(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	seed1, err := SeedFromMnemonic(mnemonic, "")
	require.NoError(t, err)

	seed2, err := SeedFromMnemonic(mnemonic, "")
	require.NoError(t, err)

	assert.Equal(t, seed1, seed2, "same mnemonic+passphrase should produce same seed")
	assert.Len(t, seed1, 64, "BIP39 seed should be 64 bytes")
}

func TestSeedFromMnemonic_DifferentPassphrase(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	seed1, err := SeedFromMnemonic(mnemonic, "")
	require.NoError(t, err)

	seed2, err := SeedFromMnemonic(mnemonic, "my secret passphrase")
	require.NoError(t, err)

	assert.NotEqual(t, seed1, seed2, "different passphrases should produce different seeds")
}

func TestSeedFromMnemonic_InvalidMnemonic(t *testing.T) {
	_, err := SeedFromMnemonic("invalid mnemonic words here", "")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

// --- Seed encryption tests ---

func TestEncryptDecryptSeed_RoundTrip(t *testing.T) {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}

	password := "test-password-123"

	encrypted, err := EncryptSeed(seed, password)
	require.NoError(t, err)
	assert.Greater(t, len(encrypted), len(seed), "encrypted should be larger than seed")

	decrypted, err := DecryptSeed(encrypted, password)
	require.NoError(t, err)
	assert.Equal(t, seed, decrypted, "decrypted seed should match original")
}

func TestDecryptSeed_WrongPassword(t *testing.T) {
	seed := make([]byte, 64)
	password := "correct-password"

	encrypted, err := EncryptSeed(seed, password)
	require.NoError(t, err)

	_, err = DecryptSeed(encrypted, "wrong-password")
	assert.ErrorIs(t, err, ErrDecryptionFailed, "wrong password should fail")
}

func TestEncryptSeed_EmptySeed(t *testing.T) {
	_, err := EncryptSeed([]byte{}, "password")
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestDecryptSeed_TooShort(t *testing.T) {
	_, err := DecryptSeed([]byte{0x01, 0x02, 0x03}, "password")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptSeed_DifferentCiphertexts(t *testing.T) {
	seed := make([]byte, 64)
	password := "same-password"

	enc1, err := EncryptSeed(seed, password)
	require.NoError(t, err)

	enc2, err := EncryptSeed(seed, password)
	require.NoError(t, err)

	// Should differ due to random salt and nonce
	assert.NotEqual(t, enc1, enc2, "same seed+password should produce different ciphertexts")

	// But both should decrypt correctly
	dec1, err := DecryptSeed(enc1, password)
	require.NoError(t, err)
	assert.Equal(t, seed, dec1)

	dec2, err := DecryptSeed(enc2, password)
	require.NoError(t, err)
	assert.Equal(t, seed, dec2)
}

func TestDecryptSeed_CorruptedCiphertext(t *testing.T) {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}
	password := "correct-password"

	encrypted, err := EncryptSeed(seed, password)
	require.NoError(t, err)

	// Flip a byte in the ciphertext portion (after salt+nonce).
	corrupted := make([]byte, len(encrypted))
	copy(corrupted, encrypted)
	ciphertextOffset := SaltLen + NonceLen
	corrupted[ciphertextOffset+5] ^= 0xFF // bit-flip

	_, err = DecryptSeed(corrupted, password)
	assert.ErrorIs(t, err, ErrDecryptionFailed, "tampered ciphertext should fail AES-GCM authentication")
}

// --- HD Key Derivation tests ---

const (
	hardhatMnemonic = "test test test test test test test test test test test junk"
	hardhatKey0     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

func newTestWallet(t *testing.T, mnemonic string) *Wallet {
	t.Helper()
	seed, err := SeedFromMnemonic(mnemonic, "")
	require.NoError(t, err)

	w, err := NewWallet(seed)
	require.NoError(t, err)
	return w
}

func TestNewWallet_EmptySeed(t *testing.T) {
	_, err := NewWallet(nil)
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestDeriveAccount_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		index    uint32
		address  string
	}{
		{"hardhat 0", hardhatMnemonic, 0, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},
		{"hardhat 1", hardhatMnemonic, 1, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"},
		{"hardhat 2", hardhatMnemonic, 2, "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"},
		{"abandon 0", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", 0, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, err := newTestWallet(t, tt.mnemonic).DeriveAccount(tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.address, acct.Address.Hex())
		})
	}
}

func TestDeriveAccount_PrivateKey(t *testing.T) {
	acct, err := newTestWallet(t, hardhatMnemonic).DeriveAccount(0)
	require.NoError(t, err)
	assert.Equal(t, hardhatKey0, hex.EncodeToString(crypto.FromECDSA(acct.PrivateKey)))
	assert.Equal(t, "m/44'/60'/0'/0/0", acct.Path)
}

func TestDeriveAccount_Deterministic(t *testing.T) {
	w := newTestWallet(t, hardhatMnemonic)
	a1, err := w.DeriveAccount(7)
	require.NoError(t, err)
	a2, err := w.DeriveAccount(7)
	require.NoError(t, err)
	assert.Equal(t, a1.Address, a2.Address)

	a3, err := w.DeriveAccount(8)
	require.NoError(t, err)
	assert.NotEqual(t, a1.Address, a3.Address)
}

func TestDeriveAccount_IndexOutOfRange(t *testing.T) {
	_, err := newTestWallet(t, hardhatMnemonic).DeriveAccount(MaxIndex + 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestDerivePath_MatchesDeriveAccount(t *testing.T) {
	w := newTestWallet(t, hardhatMnemonic)
	byIndex, err := w.DeriveAccount(3)
	require.NoError(t, err)

	byPath, err := w.DerivePath("m/44'/60'/0'/0/3")
	require.NoError(t, err)
	assert.Equal(t, byIndex.Address, byPath.Address)

	alt, err := w.DerivePath("m/44h/60h/0h/0/3")
	require.NoError(t, err)
	assert.Equal(t, byIndex.Address, alt.Address)
	assert.Equal(t, "m/44'/60'/0'/0/3", alt.Path)
}

func TestParsePath(t *testing.T) {
	got, err := ParsePath("m/44'/60'/0'/0/5")
	require.NoError(t, err)
	assert.Equal(t, []uint32{44 + Hardened, 60 + Hardened, Hardened, 0, 5}, got)

	for _, bad := range []string{"", "44'/60'", "m/x", "m/44'/-1", "m/2147483648", "n/0"} {
		_, err := ParsePath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestFormatPath(t *testing.T) {
	assert.Equal(t, "m", FormatPath(nil))
	assert.Equal(t, "m/44'/60'/0'/0/1", FormatPath([]uint32{44 + Hardened, 60 + Hardened, Hardened, 0, 1}))
}

// --- Keystore tests ---

func TestSaveLoadSeed(t *testing.T) {
	seed, err := SeedFromMnemonic(hardhatMnemonic, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", SeedFileName)
	require.NoError(t, SaveSeed(path, seed, "pw"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadSeed(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, seed, loaded)

	_, err = LoadSeed(path, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestLoadSeed_NotFound(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.enc"), "pw")
	assert.ErrorIs(t, err, ErrSeedNotFound)
}

func TestAccountFromHex(t *testing.T) {
	for _, in := range []string{hardhatKey0, "0x" + hardhatKey0, "  0x" + hardhatKey0 + "\n"} {
		acct, err := AccountFromHex(in)
		require.NoError(t, err)
		assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", acct.Address.Hex())
		assert.Empty(t, acct.Path)
	}

	_, err := AccountFromHex("0x1234")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

// --- End-to-end ---

func TestFullWalletWorkflow(t *testing.T) {
	mnemonic, err := GenerateMnemonic(DefaultWords)
	require.NoError(t, err)
	seed, err := SeedFromMnemonic(mnemonic, "")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, SeedFileName)
	require.NoError(t, SaveSeed(path, seed, "operator"))

	restored, err := LoadSeed(path, "operator")
	require.NoError(t, err)

	w1, err := NewWallet(seed)
	require.NoError(t, err)
	w2, err := NewWallet(restored)
	require.NoError(t, err)

	a1, err := w1.DeriveAccount(0)
	require.NoError(t, err)
	a2, err := w2.DeriveAccount(0)
	require.NoError(t, err)
	assert.Equal(t, a1.Address, a2.Address)
	assert.Equal(t, crypto.PubkeyToAddress(a2.PrivateKey.PublicKey), a2.Address)
}
