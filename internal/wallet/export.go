package wallet

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"

	"github.com/keyhaven/wallet-core/internal/apperrors"
	"github.com/keyhaven/wallet-core/internal/descriptor"
)

// ExportMnemonic returns the wallet's seed phrase. Session-gated. The
// phrase is handed to the caller in memory only; it is never logged
// and never cached.
func (m *Manager) ExportMnemonic(walletID string) (string, error) {
	if _, err := m.requireActiveSession(); err != nil {
		return "", err
	}
	rec, err := m.secrets.Get(walletID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return "", apperrors.Newf(apperrors.CodeWalletNotFound, "wallet %s", walletID)
		}
		return "", err
	}
	return rec.Mnemonic, nil
}

// GetAccountPrivateKey returns the private key of the session's
// current account. Session-gated; same handling rules as
// ExportMnemonic.
func (m *Manager) GetAccountPrivateKey() (string, error) {
	sess, err := m.requireActiveSession()
	if err != nil {
		return "", err
	}
	if sess.CurrentWalletID == "" || sess.CurrentAccountID == "" {
		return "", apperrors.New(apperrors.CodeNotFound, "no account selected")
	}

	rec, err := m.secrets.Get(sess.CurrentWalletID)
	if err != nil {
		return "", err
	}
	for _, a := range rec.Accounts {
		if a.AccountID == sess.CurrentAccountID {
			return a.PrivateKeyHex, nil
		}
	}
	return "", apperrors.Newf(apperrors.CodeAccountMismatch, "account %s missing from secret record", sess.CurrentAccountID)
}

const credentialDigestKey = "credential_digest"

// SetCredential stores a scrypt digest of the unlock credential in the
// descriptor tier. Used by deployments without an OS-level verifier.
func SetCredential(store *descriptor.Store, credential string) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("error generating salt: %v", err)
	}
	digest, err := scrypt.Key([]byte(credential), salt, 1<<15, 8, 1, 32)
	if err != nil {
		return fmt.Errorf("error hashing credential: %v", err)
	}
	return store.SetPreference(credentialDigestKey, hex.EncodeToString(salt)+":"+hex.EncodeToString(digest))
}

// NewDigestVerifier verifies credentials against the stored scrypt
// digest. It rejects everything until SetCredential has run.
func NewDigestVerifier(store *descriptor.Store) CredentialVerifier {
	return VerifierFunc(func(credential string) (bool, error) {
		stored, err := store.GetPreference(credentialDigestKey)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return false, nil
			}
			return false, err
		}
		parts := strings.SplitN(stored, ":", 2)
		if len(parts) != 2 {
			return false, apperrors.New(apperrors.CodeCorruptRecord, "malformed credential digest")
		}
		saltHex, digestHex := parts[0], parts[1]

		salt, err := hex.DecodeString(saltHex)
		if err != nil {
			return false, apperrors.WrapWithCode(apperrors.CodeCorruptRecord, "decode credential salt", err)
		}
		want, err := hex.DecodeString(digestHex)
		if err != nil {
			return false, apperrors.WrapWithCode(apperrors.CodeCorruptRecord, "decode credential digest", err)
		}
		got, err := scrypt.Key([]byte(credential), salt, 1<<15, 8, 1, 32)
		if err != nil {
			return false, err
		}
		return subtle.ConstantTimeCompare(got, want) == 1, nil
	})
}
