package wallet

import (
	"fmt"

	"github.com/keyhaven/wallet-core/internal/apperrors"
	"github.com/keyhaven/wallet-core/internal/cache"
	"github.com/keyhaven/wallet-core/internal/logger"
)

func balanceCacheKey(walletID, accountID string) string {
	return fmt.Sprintf("%s:%s:%s", cache.ClassBalance, walletID, accountID)
}

// walletCachePrefixes enumerates the wallet-scoped cache namespaces
// that must go when a wallet does.
func walletCachePrefixes(walletID string) []string {
	classes := []cache.Class{cache.ClassBalance, cache.ClassNFT, cache.ClassHistory}
	prefixes := make([]string, len(classes))
	for i, class := range classes {
		prefixes[i] = fmt.Sprintf("%s:%s:", class, walletID)
	}
	return prefixes
}

// SwitchWallet makes the wallet (and account, if given) the current
// selection and resets the session expiry. With no account id the
// wallet's first account is selected.
func (m *Manager) SwitchWallet(walletID, accountID string) error {
	if _, err := m.descriptors.GetWallet(walletID); err != nil {
		return err
	}
	accounts, err := m.descriptors.ListAccounts(walletID)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return apperrors.Newf(apperrors.CodeCorruptRecord, "wallet %s has no accounts", walletID)
	}

	selected := accounts[0].AccountID
	if accountID != "" {
		found := false
		for _, a := range accounts {
			if a.AccountID == accountID {
				found = true
				break
			}
		}
		if !found {
			return apperrors.Newf(apperrors.CodeAccountMismatch, "account %s does not belong to wallet %s", accountID, walletID)
		}
		selected = accountID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.descriptors.GetSession()
	if err != nil {
		return err
	}
	now := m.now()
	sess.CurrentWalletID = walletID
	sess.CurrentAccountID = selected
	if !sess.Locked {
		sess.ExpiresAt = now.Add(m.opts.SessionWindow)
	}
	if err := m.descriptors.SaveSession(sess); err != nil {
		return err
	}

	if err := m.descriptors.Touch(walletID, now); err != nil {
		return err
	}
	logger.Debug("Switched to wallet", walletID)
	return nil
}

// DeleteWallet removes a wallet and everything derived from it across
// all three tiers. The confirmation token must be the wallet id
// itself, retyped by the caller, so a UI cannot delete by accident.
// If the deleted wallet was current, selection falls to the next
// wallet in display order (locked) or back to the no-wallet state.
func (m *Manager) DeleteWallet(walletID, confirmation string) error {
	if confirmation != walletID {
		return fmt.Errorf("confirmation token does not match wallet id")
	}
	if _, err := m.descriptors.GetWallet(walletID); err != nil {
		return err
	}

	if err := m.descriptors.DeleteWallet(walletID); err != nil {
		return err
	}
	if err := m.secrets.Delete(walletID); err != nil && !apperrors.Is(err, apperrors.CodeNotFound) {
		return err
	}
	for _, prefix := range walletCachePrefixes(walletID) {
		m.cache.Invalidate(prefix)
	}

	order, err := m.descriptors.GetWalletOrder()
	if err != nil {
		return err
	}
	remaining := order[:0]
	for _, id := range order {
		if id != walletID {
			remaining = append(remaining, id)
		}
	}
	if err := m.descriptors.SetWalletOrder(remaining); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.descriptors.GetSession()
	if err != nil {
		return err
	}
	if sess.CurrentWalletID != walletID {
		logger.Info("Wallet deleted:", walletID)
		return nil
	}

	// Deleting the current wallet always re-locks.
	sess.Locked = true
	sess.CurrentWalletID = ""
	sess.CurrentAccountID = ""
	if len(remaining) > 0 {
		next := remaining[0]
		accounts, err := m.descriptors.ListAccounts(next)
		if err != nil {
			return err
		}
		sess.CurrentWalletID = next
		if len(accounts) > 0 {
			sess.CurrentAccountID = accounts[0].AccountID
		}
	}
	if err := m.descriptors.SaveSession(sess); err != nil {
		return err
	}
	m.cache.ClearAll()
	logger.Info("Wallet deleted:", walletID)
	return nil
}
