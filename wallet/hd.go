package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"strings"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// BIP44 path constants.
	PurposeBIP44     = 44
	CoinTypeEthereum = 60
	DefaultAccount   = 0
	ExternalChain    = 0

	// MaxIndex is the largest non-hardened child index.
	MaxIndex = 1<<31 - 1

	// BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet derives EVM signing keys from a BIP39 seed.
type Wallet struct {
	masterKey *bip32.ExtendedKey
}

// Account is a derived signing key and its address.
type Account struct {
	PrivateKey *ecdsa.PrivateKey `json:"-"`
	Address    common.Address    `json:"address"`
	Path       string            `json:"path"` // Human-readable derivation path
}

// NewWallet creates a new Wallet from a BIP39 seed.
func NewWallet(seed []byte) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	// The chain params only affect xprv serialization, never derivation.
	masterKey, err := bip32.NewMaster(seed, &chaincfg.MainNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Wallet{masterKey: masterKey}, nil
}

// DeriveAccount derives the standard EVM account at index.
//
//	Path: m/44'/60'/0'/0/index
func (w *Wallet) DeriveAccount(index uint32) (*Account, error) {
	if index > MaxIndex {
		return nil, ErrIndexOutOfRange
	}
	return w.derive([]uint32{
		PurposeBIP44 + Hardened,
		CoinTypeEthereum + Hardened,
		DefaultAccount + Hardened,
		ExternalChain,
		index,
	})
}

// DerivePath derives the key at an explicit path such as "m/44'/60'/1'/0/3".
func (w *Wallet) DerivePath(path string) (*Account, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return w.derive(indices)
}

func (w *Wallet) derive(indices []uint32) (*Account, error) {
	current := w.masterKey
	for depth, idx := range indices {
		next, err := current.Child(idx)
		if err != nil {
			return nil, fmt.Errorf("%w: depth %d: %w", ErrDerivationFailed, depth, err)
		}
		current = next
	}
	return extKeyToAccount(current, FormatPath(indices))
}

// ParsePath parses a BIP32 path. Hardened components are marked with ' or h.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) < 2 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	indices := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		if hardened {
			p = p[:len(p)-1]
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil || n > MaxIndex {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		idx := uint32(n)
		if hardened {
			idx += Hardened
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// FormatPath renders indices in m/44'/60'/... notation.
func FormatPath(indices []uint32) string {
	var b strings.Builder
	b.WriteString("m")
	for _, idx := range indices {
		if idx >= Hardened {
			fmt.Fprintf(&b, "/%d'", idx-Hardened)
		} else {
			fmt.Fprintf(&b, "/%d", idx)
		}
	}
	return b.String()
}

// extKeyToAccount converts a BIP32 extended key to an EVM account.
func extKeyToAccount(extKey *bip32.ExtendedKey, path string) (*Account, error) {
	privKey, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}

	key, err := crypto.ToECDSA(math.PaddedBigBytes(privKey.D, 32))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	return &Account{
		PrivateKey: key,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		Path:       path,
	}, nil
}
