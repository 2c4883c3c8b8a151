package hdkeys

import (
	"strings"
	"testing"

	"github.com/keyhaven/wallet-core/internal/apperrors"
)

// Known BIP-39 test vector mnemonic (all "abandon" + "about").
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerateMnemonic(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic failed: %v", err)
	}
	if got := len(strings.Fields(mnemonic)); got != 24 {
		t.Errorf("Expected 24 words, got %d", got)
	}
	if err := ValidateMnemonic(mnemonic); err != nil {
		t.Errorf("Generated mnemonic failed validation: %v", err)
	}
}

func TestValidateMnemonicRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"not a mnemonic at all",
		// valid words, broken checksum
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon",
	}
	for _, c := range cases {
		err := ValidateMnemonic(c)
		if err == nil {
			t.Errorf("Expected error for mnemonic %q", c)
			continue
		}
		if !apperrors.Is(err, apperrors.CodeInvalidSeed) {
			t.Errorf("Expected INVALID_SEED for %q, got %v", c, err)
		}
	}
}

func TestDeriveAccountDeterminism(t *testing.T) {
	first, err := DeriveAccount(testMnemonic, 0)
	if err != nil {
		t.Fatalf("DeriveAccount failed: %v", err)
	}
	second, err := DeriveAccount(testMnemonic, 0)
	if err != nil {
		t.Fatalf("DeriveAccount failed on second run: %v", err)
	}
	if first.Address != second.Address {
		t.Errorf("Addresses differ: %s vs %s", first.Address, second.Address)
	}
	if first.PrivateKeyHex != second.PrivateKeyHex {
		t.Error("Private keys differ between identical derivations")
	}
	if first.Path != "m/44'/60'/0'/0/0" {
		t.Errorf("Unexpected path %s", first.Path)
	}
}

func TestDeriveAccountKnownVector(t *testing.T) {
	// Standard address for the test vector at m/44'/60'/0'/0/0,
	// matches MetaMask/MEW derivation.
	key, err := DeriveAccount(testMnemonic, 0)
	if err != nil {
		t.Fatalf("DeriveAccount failed: %v", err)
	}
	want := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	if key.Address != want {
		t.Errorf("Expected address %s, got %s", want, key.Address)
	}
}

func TestDeriveAccountDistinctIndices(t *testing.T) {
	a, err := DeriveAccount(testMnemonic, 0)
	if err != nil {
		t.Fatalf("DeriveAccount(0) failed: %v", err)
	}
	b, err := DeriveAccount(testMnemonic, 1)
	if err != nil {
		t.Fatalf("DeriveAccount(1) failed: %v", err)
	}
	if a.Address == b.Address {
		t.Error("Different indices produced the same address")
	}
	if a.PrivateKeyHex == b.PrivateKeyHex {
		t.Error("Different indices produced the same private key")
	}
}

func TestDeriveAccountInvalidSeed(t *testing.T) {
	_, err := DeriveAccount("bogus words here", 0)
	if !apperrors.Is(err, apperrors.CodeInvalidSeed) {
		t.Errorf("Expected INVALID_SEED, got %v", err)
	}
}

func TestParseDerivationPath(t *testing.T) {
	indices, err := parseDerivationPath("m/44'/60'/0'/0/7")
	if err != nil {
		t.Fatalf("parseDerivationPath failed: %v", err)
	}
	if len(indices) != 5 {
		t.Fatalf("Expected 5 segments, got %d", len(indices))
	}
	if indices[4] != 7 {
		t.Errorf("Expected final index 7, got %d", indices[4])
	}
	if _, err := parseDerivationPath("m//0"); err == nil {
		t.Error("Expected error for empty segment")
	}
	if _, err := parseDerivationPath(""); err == nil {
		t.Error("Expected error for empty path")
	}
}
