package wallet

import (
	"time"

	"github.com/keyhaven/wallet-core/internal/apperrors"
	"github.com/keyhaven/wallet-core/internal/cache"
	"github.com/keyhaven/wallet-core/internal/descriptor"
)

// WalletInfo is the caller-facing view of a wallet. It is built from
// descriptor-tier data only and can never carry secret material.
type WalletInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color,omitempty"`
	Icon       string    `json:"icon,omitempty"`
	Category   string    `json:"category"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// AccountInfo is the caller-facing view of an account.
type AccountInfo struct {
	ID             string    `json:"id"`
	WalletID       string    `json:"wallet_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	DerivationPath string    `json:"derivation_path"`
	Index          uint32    `json:"index"`
	CachedBalance  string    `json:"cached_balance,omitempty"`
	Hidden         bool      `json:"hidden"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// WalletWithAccounts bundles a wallet with its accounts in derivation
// order.
type WalletWithAccounts struct {
	Wallet   WalletInfo    `json:"wallet"`
	Accounts []AccountInfo `json:"accounts"`
}

// CurrentSelection is the session's active wallet/account pair.
type CurrentSelection struct {
	Wallet    WalletInfo  `json:"wallet"`
	Account   AccountInfo `json:"account"`
	NetworkID string      `json:"network_id"`
	Locked    bool        `json:"locked"`
}

func walletInfo(rec *descriptor.WalletRecord) WalletInfo {
	return WalletInfo{
		ID:         rec.WalletID,
		Name:       rec.Name,
		Color:      rec.Color,
		Icon:       rec.Icon,
		Category:   rec.Category,
		CreatedAt:  rec.WalletCreatedAt,
		LastUsedAt: rec.LastUsedAt,
	}
}

func accountInfo(rec *descriptor.AccountRecord) AccountInfo {
	return AccountInfo{
		ID:             rec.AccountID,
		WalletID:       rec.WalletID,
		Name:           rec.Name,
		Address:        rec.Address,
		DerivationPath: rec.DerivationPath,
		Index:          rec.AccountIndex,
		CachedBalance:  rec.CachedBalance,
		Hidden:         rec.Hidden,
		LastActivityAt: rec.LastActivityAt,
	}
}

// GetAllWallets lists wallets in display order. Wallets missing from
// the order list (older data) are appended at the end.
func (m *Manager) GetAllWallets() ([]WalletInfo, error) {
	recs, err := m.descriptors.ListWallets()
	if err != nil {
		return nil, err
	}
	order, err := m.descriptors.GetWalletOrder()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*descriptor.WalletRecord, len(recs))
	for i := range recs {
		byID[recs[i].WalletID] = &recs[i]
	}

	out := make([]WalletInfo, 0, len(recs))
	seen := make(map[string]bool, len(recs))
	for _, id := range order {
		if rec, ok := byID[id]; ok {
			out = append(out, walletInfo(rec))
			seen[id] = true
		}
	}
	for i := range recs {
		if !seen[recs[i].WalletID] {
			out = append(out, walletInfo(&recs[i]))
		}
	}
	return out, nil
}

// GetWalletWithAccounts returns one wallet and all its accounts.
func (m *Manager) GetWalletWithAccounts(walletID string) (*WalletWithAccounts, error) {
	wrec, err := m.descriptors.GetWallet(walletID)
	if err != nil {
		return nil, err
	}
	arecs, err := m.descriptors.ListAccounts(walletID)
	if err != nil {
		return nil, err
	}
	accounts := make([]AccountInfo, len(arecs))
	for i := range arecs {
		accounts[i] = accountInfo(&arecs[i])
	}
	return &WalletWithAccounts{Wallet: walletInfo(wrec), Accounts: accounts}, nil
}

// GetCurrentWallet returns the session's current selection, or
// NotFound when no wallet exists yet.
func (m *Manager) GetCurrentWallet() (*CurrentSelection, error) {
	sess, err := m.descriptors.GetSession()
	if err != nil {
		return nil, err
	}
	if sess.CurrentWalletID == "" {
		return nil, apperrors.New(apperrors.CodeNotFound, "no wallet selected")
	}
	wrec, err := m.descriptors.GetWallet(sess.CurrentWalletID)
	if err != nil {
		return nil, err
	}
	arec, err := m.descriptors.GetAccount(sess.CurrentAccountID)
	if err != nil {
		return nil, err
	}
	locked, err := m.IsLocked()
	if err != nil {
		return nil, err
	}
	return &CurrentSelection{
		Wallet:    walletInfo(wrec),
		Account:   accountInfo(arec),
		NetworkID: sess.NetworkID,
		Locked:    locked,
	}, nil
}

// RenameWallet updates the display name.
func (m *Manager) RenameWallet(walletID, name string) error {
	wrec, err := m.descriptors.GetWallet(walletID)
	if err != nil {
		return err
	}
	wrec.Name = name
	return m.descriptors.UpdateWallet(wrec)
}

// SetWalletOrder replaces the display-order list. Every id must name
// an existing wallet.
func (m *Manager) SetWalletOrder(order []string) error {
	for _, id := range order {
		if _, err := m.descriptors.GetWallet(id); err != nil {
			return err
		}
	}
	return m.descriptors.SetWalletOrder(order)
}

// UpdateCachedBalance records a display balance on the account record
// and refreshes the balance cache entry. Non-authoritative.
func (m *Manager) UpdateCachedBalance(accountID, balance string) error {
	arec, err := m.descriptors.GetAccount(accountID)
	if err != nil {
		return err
	}
	arec.CachedBalance = balance
	arec.LastActivityAt = m.now()
	if err := m.descriptors.UpdateAccount(arec); err != nil {
		return err
	}
	m.cache.Set(balanceCacheKey(arec.WalletID, accountID), balance, cache.ClassBalance, cache.PriorityNormal)
	return nil
}
