// Package backup serializes the custody state into a single portable
// document and restores it on another device. The document carries the
// secret tier (mnemonics), so at-rest protection is the caller's
// passphrase, not the device key.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/keyhaven/wallet-core/internal/apperrors"
	"github.com/keyhaven/wallet-core/internal/descriptor"
	"github.com/keyhaven/wallet-core/internal/hdkeys"
	"github.com/keyhaven/wallet-core/internal/logger"
	"github.com/keyhaven/wallet-core/internal/secretstore"
)

// DocumentVersion is bumped when the backup schema changes shape.
const DocumentVersion = 1

// AccountSnapshot captures one account. Private keys are not stored;
// restore re-derives them from the wallet mnemonic and checks the
// address, which doubles as a corruption check on the seed itself.
type AccountSnapshot struct {
	AccountID      string `json:"account_id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	DerivationPath string `json:"derivation_path"`
	Index          uint32 `json:"index"`
	Hidden         bool   `json:"hidden,omitempty"`
}

// WalletSnapshot captures one wallet across both persistent tiers.
type WalletSnapshot struct {
	WalletID         string            `json:"wallet_id"`
	Name             string            `json:"name"`
	Color            string            `json:"color,omitempty"`
	Icon             string            `json:"icon,omitempty"`
	Category         string            `json:"category"`
	NextAccountIndex uint32            `json:"next_account_index"`
	CreatedAt        time.Time         `json:"created_at"`
	Mnemonic         string            `json:"mnemonic"`
	Accounts         []AccountSnapshot `json:"accounts"`
}

// Document is the full backup payload. Checksum is a hex sha256 over
// the canonical JSON encoding of the document with Checksum empty.
type Document struct {
	Version      int               `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	Wallets      []WalletSnapshot  `json:"wallets"`
	DisplayOrder []string          `json:"display_order"`
	Preferences  map[string]string `json:"preferences,omitempty"`
	Checksum     string            `json:"checksum"`
}

// CreateOptions tune what goes into a backup.
type CreateOptions struct {
	// Passphrase, when non-empty, encrypts the whole document. An empty
	// passphrase produces a plaintext document; the caller owns that
	// decision.
	Passphrase string

	// IncludeSettings adds the preference map to the document.
	IncludeSettings bool
}

// RestoreOptions tune how a backup is applied.
type RestoreOptions struct {
	Passphrase string

	// OverwriteExisting replaces wallets whose id already exists. When
	// false those wallets are skipped and reported.
	OverwriteExisting bool

	// SkipChecksumVerification disables the integrity check, for
	// salvaging a damaged backup. The zero value always verifies.
	SkipChecksumVerification bool
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	Restored []string `json:"restored"`
	Skipped  []string `json:"skipped"`
}

// Service reads and writes backup documents against the two persistent
// tiers. It never touches the session or the ephemeral cache.
type Service struct {
	secrets     *secretstore.Store
	descriptors *descriptor.Store
	now         func() time.Time
}

func NewService(secrets *secretstore.Store, descriptors *descriptor.Store) *Service {
	return &Service{secrets: secrets, descriptors: descriptors, now: time.Now}
}

// Create builds a backup of every wallet and returns the serialized
// document, encrypted when a passphrase is given.
func (s *Service) Create(opts CreateOptions) ([]byte, error) {
	wallets, err := s.descriptors.ListWallets()
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Version:   DocumentVersion,
		CreatedAt: s.now().UTC(),
		Wallets:   make([]WalletSnapshot, 0, len(wallets)),
	}

	for i := range wallets {
		w := &wallets[i]
		srec, err := s.secrets.Get(w.WalletID)
		if err != nil {
			return nil, apperrors.WrapWithCode(apperrors.CodeCorruptRecord, "read secret record for "+w.WalletID, err)
		}
		accounts, err := s.descriptors.ListAccounts(w.WalletID)
		if err != nil {
			return nil, err
		}

		snap := WalletSnapshot{
			WalletID:         w.WalletID,
			Name:             w.Name,
			Color:            w.Color,
			Icon:             w.Icon,
			Category:         w.Category,
			NextAccountIndex: w.NextAccountIndex,
			CreatedAt:        w.WalletCreatedAt,
			Mnemonic:         srec.Mnemonic,
			Accounts:         make([]AccountSnapshot, 0, len(accounts)),
		}
		for j := range accounts {
			a := &accounts[j]
			snap.Accounts = append(snap.Accounts, AccountSnapshot{
				AccountID:      a.AccountID,
				Name:           a.Name,
				Address:        a.Address,
				DerivationPath: a.DerivationPath,
				Index:          a.AccountIndex,
				Hidden:         a.Hidden,
			})
		}
		doc.Wallets = append(doc.Wallets, snap)
	}

	order, err := s.descriptors.GetWalletOrder()
	if err != nil {
		return nil, err
	}
	doc.DisplayOrder = order

	if opts.IncludeSettings {
		prefs, err := s.descriptors.ListPreferences()
		if err != nil {
			return nil, err
		}
		doc.Preferences = prefs
	}

	if err := sealChecksum(doc); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	if opts.Passphrase != "" {
		encrypted, err := secretstore.Encrypt(string(payload), opts.Passphrase)
		if err != nil {
			return nil, err
		}
		payload = []byte(encrypted)
	}
	logger.Info("Backup created with", len(doc.Wallets), "wallets")
	return payload, nil
}

// Restore applies a backup document. Everything is decoded, verified
// and staged in memory before the first store write, so a bad document
// leaves both tiers untouched.
func (s *Service) Restore(data []byte, opts RestoreOptions) (*RestoreResult, error) {
	doc, err := decode(data, opts.Passphrase, !opts.SkipChecksumVerification)
	if err != nil {
		return nil, err
	}

	type stagedWallet struct {
		secret   *secretstore.Record
		wallet   *descriptor.WalletRecord
		accounts []*descriptor.AccountRecord
		replace  bool
	}

	result := &RestoreResult{}
	staged := make([]stagedWallet, 0, len(doc.Wallets))
	now := s.now()

	for i := range doc.Wallets {
		snap := &doc.Wallets[i]
		if err := hdkeys.ValidateMnemonic(snap.Mnemonic); err != nil {
			return nil, apperrors.WrapWithCode(apperrors.CodeInvalidSeed, "wallet "+snap.WalletID, err)
		}

		_, err := s.descriptors.GetWallet(snap.WalletID)
		exists := err == nil
		if err != nil && !apperrors.Is(err, apperrors.CodeWalletNotFound) {
			return nil, err
		}
		if exists && !opts.OverwriteExisting {
			result.Skipped = append(result.Skipped, snap.WalletID)
			continue
		}

		sw := stagedWallet{
			secret: &secretstore.Record{
				WalletID: snap.WalletID,
				Mnemonic: snap.Mnemonic,
			},
			wallet: &descriptor.WalletRecord{
				WalletID:         snap.WalletID,
				Name:             snap.Name,
				Color:            snap.Color,
				Icon:             snap.Icon,
				Category:         snap.Category,
				NextAccountIndex: snap.NextAccountIndex,
				WalletCreatedAt:  snap.CreatedAt,
				LastUsedAt:       now,
			},
			replace: exists,
		}
		for j := range snap.Accounts {
			acct := &snap.Accounts[j]
			key, err := hdkeys.DeriveAccount(snap.Mnemonic, acct.Index)
			if err != nil {
				return nil, err
			}
			if !strings.EqualFold(key.Address, acct.Address) {
				return nil, apperrors.Newf(apperrors.CodeIntegrityCheckFailed,
					"account %s: derived address does not match backup", acct.AccountID)
			}
			sw.secret.Accounts = append(sw.secret.Accounts, secretstore.AccountSecret{
				AccountID:      acct.AccountID,
				DerivationPath: key.Path,
				PrivateKeyHex:  key.PrivateKeyHex,
			})
			sw.accounts = append(sw.accounts, &descriptor.AccountRecord{
				AccountID:      acct.AccountID,
				WalletID:       snap.WalletID,
				Name:           acct.Name,
				Address:        acct.Address,
				DerivationPath: acct.DerivationPath,
				AccountIndex:   acct.Index,
				Hidden:         acct.Hidden,
				LastActivityAt: now,
			})
		}
		staged = append(staged, sw)
	}

	// Staging succeeded; start writing. Secret tier goes first per
	// wallet so a partial failure leaves recoverable state.
	for _, sw := range staged {
		if sw.replace {
			if err := s.descriptors.DeleteWallet(sw.wallet.WalletID); err != nil {
				return result, err
			}
			if err := s.secrets.Delete(sw.wallet.WalletID); err != nil && !apperrors.Is(err, apperrors.CodeNotFound) {
				return result, err
			}
		}
		if err := s.secrets.Put(sw.secret); err != nil {
			return result, err
		}
		if err := s.descriptors.CreateWallet(sw.wallet); err != nil {
			return result, err
		}
		for _, arec := range sw.accounts {
			if err := s.descriptors.CreateAccount(arec); err != nil {
				return result, err
			}
		}
		result.Restored = append(result.Restored, sw.wallet.WalletID)
	}

	if err := s.mergeOrder(doc.DisplayOrder, result.Restored); err != nil {
		return result, err
	}
	for key, value := range doc.Preferences {
		if err := s.descriptors.SetPreference(key, value); err != nil {
			return result, err
		}
	}
	logger.Info("Backup restored:", len(result.Restored), "wallets,", len(result.Skipped), "skipped")
	return result, nil
}

// Decode unwraps, decrypts and checksum-verifies a backup payload
// without applying it. Exposed so callers can inspect a backup before
// restoring.
func Decode(data []byte, passphrase string) (*Document, error) {
	return decode(data, passphrase, true)
}

func decode(data []byte, passphrase string, verify bool) (*Document, error) {
	raw := strings.TrimSpace(string(data))
	if !strings.HasPrefix(raw, "{") {
		if passphrase == "" {
			return nil, apperrors.New(apperrors.CodeDecryptionFailed, "backup is encrypted, passphrase required")
		}
		plain, err := secretstore.Decrypt(raw, passphrase)
		if err != nil {
			return nil, apperrors.WrapWithCode(apperrors.CodeDecryptionFailed, "decrypt backup", err)
		}
		raw = plain
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeCorruptRecord, "parse backup document", err)
	}
	if doc.Version != DocumentVersion {
		return nil, apperrors.Newf(apperrors.CodeCorruptRecord, "unsupported backup version %d", doc.Version)
	}
	if verify {
		if err := verifyChecksum(&doc); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func checksumOf(doc *Document) (string, error) {
	clone := *doc
	clone.Checksum = ""
	payload, err := json.Marshal(&clone)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func sealChecksum(doc *Document) error {
	sum, err := checksumOf(doc)
	if err != nil {
		return err
	}
	doc.Checksum = sum
	return nil
}

func verifyChecksum(doc *Document) error {
	if doc.Checksum == "" {
		return apperrors.New(apperrors.CodeIntegrityCheckFailed, "backup has no checksum")
	}
	want, err := checksumOf(doc)
	if err != nil {
		return err
	}
	if doc.Checksum != want {
		return apperrors.New(apperrors.CodeIntegrityCheckFailed, "backup checksum mismatch")
	}
	return nil
}

func (s *Service) mergeOrder(docOrder, restored []string) error {
	if len(restored) == 0 {
		return nil
	}
	restoredSet := make(map[string]bool, len(restored))
	for _, id := range restored {
		restoredSet[id] = true
	}

	current, err := s.descriptors.GetWalletOrder()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(current))
	merged := make([]string, 0, len(current)+len(restored))
	for _, id := range current {
		if !seen[id] {
			merged = append(merged, id)
			seen[id] = true
		}
	}
	// Restored wallets keep their relative order from the document.
	for _, id := range docOrder {
		if restoredSet[id] && !seen[id] {
			merged = append(merged, id)
			seen[id] = true
		}
	}
	for _, id := range restored {
		if !seen[id] {
			merged = append(merged, id)
			seen[id] = true
		}
	}
	return s.descriptors.SetWalletOrder(merged)
}
