// Package descriptor is the descriptor tier: wallet and account
// metadata, display ordering, session state and user preferences,
// persisted in sqlite. Operations here never accept or return secret
// material.
package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keyhaven/wallet-core/internal/apperrors"
)

const walletOrderKey = "wallet_display_order"

// Store wraps the sqlite database holding descriptor-tier records.
type Store struct {
	db *gorm.DB
}

// Open initializes the database and migrates schemas.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
	}

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}
	db, err := gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	err = db.AutoMigrate(
		&WalletRecord{},
		&AccountRecord{},
		&SessionRecord{},
		&Preference{},
		&Metadata{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying sqlite handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---------- wallets ----------

func (s *Store) CreateWallet(w *WalletRecord) error {
	return s.db.Create(w).Error
}

func (s *Store) GetWallet(walletID string) (*WalletRecord, error) {
	var rec WalletRecord
	result := s.db.Where("wallet_id = ?", walletID).First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeWalletNotFound, "wallet %s", walletID)
		}
		return nil, result.Error
	}
	return &rec, nil
}

func (s *Store) UpdateWallet(w *WalletRecord) error {
	result := s.db.Save(w)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeWalletNotFound, "wallet %s", w.WalletID)
	}
	return nil
}

// Touch updates a wallet's last-used timestamp.
func (s *Store) Touch(walletID string, at time.Time) error {
	result := s.db.Model(&WalletRecord{}).Where("wallet_id = ?", walletID).Update("last_used_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeWalletNotFound, "wallet %s", walletID)
	}
	return nil
}

func (s *Store) ListWallets() ([]WalletRecord, error) {
	var recs []WalletRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteWallet removes the wallet record and all its account records.
func (s *Store) DeleteWallet(walletID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		// Hard delete: soft-deleted rows would still hold the unique
		// wallet_id index and block re-import of the same wallet.
		result := tx.Unscoped().Where("wallet_id = ?", walletID).Delete(&WalletRecord{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.Newf(apperrors.CodeWalletNotFound, "wallet %s", walletID)
		}
		return tx.Unscoped().Where("wallet_id = ?", walletID).Delete(&AccountRecord{}).Error
	})
}

// ---------- accounts ----------

func (s *Store) CreateAccount(a *AccountRecord) error {
	return s.db.Create(a).Error
}

func (s *Store) GetAccount(accountID string) (*AccountRecord, error) {
	var rec AccountRecord
	result := s.db.Where("account_id = ?", accountID).First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "account %s", accountID)
		}
		return nil, result.Error
	}
	return &rec, nil
}

func (s *Store) UpdateAccount(a *AccountRecord) error {
	return s.db.Save(a).Error
}

// ListAccounts returns a wallet's accounts in derivation order.
func (s *Store) ListAccounts(walletID string) ([]AccountRecord, error) {
	var recs []AccountRecord
	err := s.db.Where("wallet_id = ?", walletID).
		Order("account_index asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// ---------- display order ----------

// GetWalletOrder returns the explicit display-order list of wallet
// ids. An empty list means no order has been recorded yet.
func (s *Store) GetWalletOrder() ([]string, error) {
	var meta Metadata
	result := s.db.Where("key = ?", walletOrderKey).First(&meta)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	var order []string
	if err := json.Unmarshal([]byte(meta.Value), &order); err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeCorruptRecord, "decode wallet order", err)
	}
	return order, nil
}

func (s *Store) SetWalletOrder(order []string) error {
	encoded, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode wallet order: %v", err)
	}
	return s.upsertMetadata(walletOrderKey, string(encoded))
}

func (s *Store) upsertMetadata(key, value string) error {
	var meta Metadata
	result := s.db.Where("key = ?", key).First(&meta)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return s.db.Create(&Metadata{Key: key, Value: value}).Error
		}
		return result.Error
	}
	meta.Value = value
	return s.db.Save(&meta).Error
}

// ---------- session ----------

// GetSession returns the singleton session row, creating a locked
// empty session on first access.
func (s *Store) GetSession() (*SessionRecord, error) {
	var rec SessionRecord
	result := s.db.First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			rec = SessionRecord{Locked: true}
			if err := s.db.Create(&rec).Error; err != nil {
				return nil, err
			}
			return &rec, nil
		}
		return nil, result.Error
	}
	return &rec, nil
}

func (s *Store) SaveSession(rec *SessionRecord) error {
	return s.db.Save(rec).Error
}

// ---------- preferences ----------

func (s *Store) SetPreference(key, value string) error {
	var pref Preference
	result := s.db.Where("key = ?", key).First(&pref)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return s.db.Create(&Preference{Key: key, Value: value}).Error
		}
		return result.Error
	}
	pref.Value = value
	return s.db.Save(&pref).Error
}

func (s *Store) GetPreference(key string) (string, error) {
	var pref Preference
	result := s.db.Where("key = ?", key).First(&pref)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", apperrors.Newf(apperrors.CodeNotFound, "preference %s", key)
		}
		return "", result.Error
	}
	return pref.Value, nil
}

func (s *Store) ListPreferences() (map[string]string, error) {
	var prefs []Preference
	if err := s.db.Find(&prefs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(prefs))
	for _, p := range prefs {
		out[p.Key] = p.Value
	}
	return out, nil
}
