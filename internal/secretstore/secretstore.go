// Package secretstore is the secret tier: seed phrases and derived
// private keys, encrypted at rest under a device-bound key. Each
// wallet's record lives in its own .env file so deleting a wallet
// removes exactly one file and nothing in this directory overlaps
// with descriptor- or cache-tier storage.
package secretstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/keyhaven/wallet-core/internal/apperrors"
)

const (
	// SchemaVersion is bumped when the record layout changes so old
	// files can be migrated on read.
	SchemaVersion = 1

	recordKey  = "ENCRYPTED_RECORD"
	versionKey = "SCHEMA_VERSION"
)

// AccountSecret is the secret half of one derived account.
type AccountSecret struct {
	AccountID      string `json:"account_id"`
	DerivationPath string `json:"derivation_path"`
	PrivateKeyHex  string `json:"private_key_hex"`
}

// Record is the full secret-tier payload for one wallet.
type Record struct {
	Version  int             `json:"version"`
	WalletID string          `json:"wallet_id"`
	Mnemonic string          `json:"mnemonic"`
	Accounts []AccountSecret `json:"accounts"`
}

// Store persists encrypted Records, one file per wallet id.
type Store struct {
	dir       string
	deviceKey string
}

// Open prepares the store directory and binds it to the device key.
func Open(dir string, deviceKey string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("error creating secret store directory: %v", err)
	}
	return &Store{dir: dir, deviceKey: deviceKey}, nil
}

func (s *Store) recordPath(walletID string) string {
	return filepath.Join(s.dir, walletID+".env")
}

// Put encrypts and durably writes the record. The write is synced to
// disk before Put returns.
func (s *Store) Put(rec *Record) error {
	if rec.WalletID == "" {
		return fmt.Errorf("record has no wallet id")
	}
	rec.Version = SchemaVersion

	plaintext, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error encoding secret record: %v", err)
	}
	encrypted, err := Encrypt(string(plaintext), s.deviceKey)
	if err != nil {
		return fmt.Errorf("error encrypting secret record: %v", err)
	}

	envFile := s.recordPath(rec.WalletID)
	err = godotenv.Write(map[string]string{
		recordKey:  encrypted,
		versionKey: fmt.Sprintf("%d", SchemaVersion),
	}, envFile)
	if err != nil {
		return fmt.Errorf("error saving encrypted record: %v", err)
	}
	if err := os.Chmod(envFile, 0600); err != nil {
		return fmt.Errorf("error restricting record permissions: %v", err)
	}
	return syncFile(envFile)
}

// Get loads and decrypts the record for a wallet id.
func (s *Store) Get(walletID string) (*Record, error) {
	envFile := s.recordPath(walletID)
	values, err := godotenv.Read(envFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "secret record %s", walletID)
		}
		return nil, apperrors.WrapWithCode(apperrors.CodeCorruptRecord, "read secret record", err)
	}

	encrypted := values[recordKey]
	if encrypted == "" {
		return nil, apperrors.Newf(apperrors.CodeCorruptRecord, "secret record %s is empty", walletID)
	}

	plaintext, err := Decrypt(encrypted, s.deviceKey)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeCorruptRecord, "decrypt secret record", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(plaintext), &rec); err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeCorruptRecord, "decode secret record", err)
	}
	return &rec, nil
}

// Delete removes the record file. Deleting an absent record is NotFound
// so callers can distinguish "already gone".
func (s *Store) Delete(walletID string) error {
	err := os.Remove(s.recordPath(walletID))
	if os.IsNotExist(err) {
		return apperrors.Newf(apperrors.CodeNotFound, "secret record %s", walletID)
	}
	return err
}

// ListIDs returns every wallet id with a stored record.
func (s *Store) ListIDs() ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("error reading secret store directory: %v", err)
	}

	var ids []string
	for _, file := range files {
		if filepath.Ext(file.Name()) == ".env" {
			ids = append(ids, strings.TrimSuffix(file.Name(), ".env"))
		}
	}
	return ids, nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error reopening record for sync: %v", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("error syncing record: %v", err)
	}
	return nil
}
