package descriptor

import (
	"time"

	"gorm.io/gorm"
)

// The descriptor tier holds no secret material by construction: none
// of these structs has a field that could carry a seed phrase or
// private key. Reviewers can verify secret isolation from this file
// alone.

// WalletRecord is the non-sensitive half of a wallet.
type WalletRecord struct {
	gorm.Model
	WalletID         string `gorm:"uniqueIndex"`
	Name             string
	Color            string
	Icon             string
	Category         string `gorm:"index"` // "created" or "imported"
	NextAccountIndex uint32
	WalletCreatedAt  time.Time
	LastUsedAt       time.Time
}

// AccountRecord is the non-sensitive half of a derived account.
type AccountRecord struct {
	gorm.Model
	AccountID      string `gorm:"uniqueIndex"`
	WalletID       string `gorm:"index"`
	Name           string
	Address        string `gorm:"index"`
	DerivationPath string
	AccountIndex   uint32
	CachedBalance  string // display-only, non-authoritative
	Hidden         bool
	LastActivityAt time.Time
}

// SessionRecord is the singleton custody-session row. It carries no
// secret; it only records which wallet/account/network is selected
// and whether the session window is open.
type SessionRecord struct {
	gorm.Model
	CurrentWalletID  string
	CurrentAccountID string
	NetworkID        string
	Locked           bool
	UnlockedAt       time.Time
	ExpiresAt        time.Time
}

// Preference stores user preferences and network settings.
type Preference struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex"`
	Value string
}

// Metadata stores miscellaneous descriptor-tier state, such as the
// display-order list.
type Metadata struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex"`
	Value string
}
