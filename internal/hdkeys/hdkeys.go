// Package hdkeys handles BIP-39 mnemonics and deterministic account
// derivation. It is pure: the same (mnemonic, index) always produces
// the same address and private key, which the rest of the core relies
// on for re-derivation after restore.
package hdkeys

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/keyhaven/wallet-core/internal/apperrors"
)

// AccountPathPrefix is the BIP-44 prefix for derived accounts. The
// final segment is the sequential account index.
const AccountPathPrefix = "m/44'/60'/0'/0"

// DerivedKey is the result of deriving one account from a seed.
type DerivedKey struct {
	Address       string
	PrivateKeyHex string
	Path          string
}

// GenerateMnemonic produces a fresh 24-word mnemonic from 256 bits of
// entropy.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("error generating entropy: %v", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("error generating mnemonic: %v", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks word count and checksum.
func ValidateMnemonic(mnemonic string) error {
	if !bip39.IsMnemonicValid(mnemonic) {
		return apperrors.New(apperrors.CodeInvalidSeed, "invalid mnemonic provided")
	}
	return nil
}

// AccountPath returns the canonical derivation path for an index.
func AccountPath(index uint32) string {
	return fmt.Sprintf("%s/%d", AccountPathPrefix, index)
}

// DeriveAccount derives the key pair for the given account index from
// a mnemonic. Callers must zero the returned private key material as
// soon as it has been encrypted or handed off.
func DeriveAccount(mnemonic string, index uint32) (*DerivedKey, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	seed := bip39.NewSeed(mnemonic, "")
	defer clearBytes(seed)

	path := AccountPath(index)
	key, err := deriveFromSeed(seed, path)
	if err != nil {
		return nil, err
	}
	key.Path = path
	return key, nil
}

func deriveFromSeed(seed []byte, path string) (*DerivedKey, error) {
	// hdkeychain does not distinguish eth networks; mainnet params
	// only affect the xprv serialization, not the derived scalar.
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	indices, err := parseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path: %w", err)
	}

	key := master
	for _, idx := range indices {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child key: %w", err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get EC private key: %w", err)
	}
	privBytes := priv.Serialize()
	defer clearBytes(privBytes)

	ecdsaKey, err := crypto.ToECDSA(privBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to ecdsa: %w", err)
	}
	addr := crypto.PubkeyToAddress(ecdsaKey.PublicKey)

	return &DerivedKey{
		Address:       addr.Hex(),
		PrivateKeyHex: hex.EncodeToString(crypto.FromECDSA(ecdsaKey)),
	}, nil
}

// parseDerivationPath accepts "m/44'/60'/0'/0/0" or "44'/60'/0'/0/0".
func parseDerivationPath(path string) ([]uint32, error) {
	p := strings.TrimSpace(path)
	if strings.HasPrefix(p, "m/") || strings.HasPrefix(p, "M/") {
		p = p[2:]
	}
	if p == "" {
		return nil, fmt.Errorf("empty derivation path")
	}
	parts := strings.Split(p, "/")
	indices := make([]uint32, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("invalid path segment")
		}
		hardened := strings.HasSuffix(part, "'")
		if hardened {
			part = strings.TrimSuffix(part, "'")
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid derivation index %q", part)
		}
		idx := uint32(v)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
