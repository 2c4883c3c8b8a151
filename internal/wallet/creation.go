package wallet

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/keyhaven/wallet-core/internal/apperrors"
	"github.com/keyhaven/wallet-core/internal/descriptor"
	"github.com/keyhaven/wallet-core/internal/hdkeys"
	"github.com/keyhaven/wallet-core/internal/logger"
	"github.com/keyhaven/wallet-core/internal/secretstore"
)

// CreateParams describe a wallet to create. An empty Mnemonic means
// "generate a fresh one".
type CreateParams struct {
	Name     string
	Mnemonic string
	Color    string
	Icon     string
	Category string
}

// CreateWallet creates a wallet with account 0 at the canonical path
// and returns the new wallet id. The new wallet becomes the current
// selection. It starts locked unless it is the very first wallet ever
// created and first-wallet auto-unlock is enabled.
func (m *Manager) CreateWallet(params CreateParams) (string, error) {
	mnemonic := params.Mnemonic
	if mnemonic == "" {
		var err error
		mnemonic, err = hdkeys.GenerateMnemonic()
		if err != nil {
			return "", err
		}
	} else if err := hdkeys.ValidateMnemonic(mnemonic); err != nil {
		return "", err
	}

	category := params.Category
	if category == "" {
		category = CategoryCreated
	}
	name := params.Name
	if name == "" {
		name = "Wallet"
	}

	existing, err := m.descriptors.ListWallets()
	if err != nil {
		return "", err
	}
	firstEver := len(existing) == 0

	walletID := uuid.NewString()
	accountID := uuid.NewString()

	key, err := hdkeys.DeriveAccount(mnemonic, 0)
	if err != nil {
		return "", err
	}

	now := m.now()

	// Secret tier first: a wallet without its secret record is
	// useless, a secret record without descriptors is recoverable.
	err = m.secrets.Put(&secretstore.Record{
		WalletID: walletID,
		Mnemonic: mnemonic,
		Accounts: []secretstore.AccountSecret{{
			AccountID:      accountID,
			DerivationPath: key.Path,
			PrivateKeyHex:  key.PrivateKeyHex,
		}},
	})
	if err != nil {
		return "", err
	}

	err = m.descriptors.CreateWallet(&descriptor.WalletRecord{
		WalletID:         walletID,
		Name:             name,
		Color:            params.Color,
		Icon:             params.Icon,
		Category:         category,
		NextAccountIndex: 1,
		WalletCreatedAt:  now,
		LastUsedAt:       now,
	})
	if err != nil {
		if delErr := m.secrets.Delete(walletID); delErr != nil {
			logger.Error("Failed to roll back secret record:", delErr)
		}
		return "", err
	}

	err = m.descriptors.CreateAccount(&descriptor.AccountRecord{
		AccountID:      accountID,
		WalletID:       walletID,
		Name:           "Account 1",
		Address:        key.Address,
		DerivationPath: key.Path,
		AccountIndex:   0,
		LastActivityAt: now,
	})
	if err != nil {
		return "", err
	}

	order, err := m.descriptors.GetWalletOrder()
	if err != nil {
		return "", err
	}
	if err := m.descriptors.SetWalletOrder(append([]string{walletID}, order...)); err != nil {
		return "", err
	}

	if err := m.selectAfterCreate(walletID, accountID, firstEver); err != nil {
		return "", err
	}

	logger.Info("Wallet created:", walletID)
	return walletID, nil
}

// ImportWallet is CreateWallet with a supplied seed and a fixed
// "imported" category.
func (m *Manager) ImportWallet(name, mnemonic string) (string, error) {
	if mnemonic == "" {
		return "", apperrors.New(apperrors.CodeInvalidSeed, "empty mnemonic")
	}
	return m.CreateWallet(CreateParams{
		Name:     name,
		Mnemonic: mnemonic,
		Category: CategoryImported,
	})
}

func (m *Manager) selectAfterCreate(walletID, accountID string, firstEver bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.descriptors.GetSession()
	if err != nil {
		return err
	}
	sess.CurrentWalletID = walletID
	sess.CurrentAccountID = accountID
	if sess.NetworkID == "" {
		sess.NetworkID = m.opts.NetworkID
	}
	if firstEver && m.opts.FirstWalletAutoUnlock {
		now := m.now()
		sess.Locked = false
		sess.UnlockedAt = now
		sess.ExpiresAt = now.Add(m.opts.SessionWindow)
	} else {
		sess.Locked = true
	}
	return m.descriptors.SaveSession(sess)
}

// CreateAccount derives the wallet's next sequential account. Requires
// an active session since it reads the seed. Index allocation is
// serialized per wallet so concurrent calls never derive the same
// index.
func (m *Manager) CreateAccount(walletID, name string) (*AccountInfo, error) {
	if _, err := m.requireActiveSession(); err != nil {
		return nil, err
	}

	lock := m.walletLock(walletID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read inside the lock: the index must reflect any account
	// created while we waited.
	wrec, err := m.descriptors.GetWallet(walletID)
	if err != nil {
		return nil, err
	}
	srec, err := m.secrets.Get(walletID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil, apperrors.Newf(apperrors.CodeWalletNotFound, "secret record for wallet %s", walletID)
		}
		return nil, err
	}

	index := wrec.NextAccountIndex
	key, err := hdkeys.DeriveAccount(srec.Mnemonic, index)
	if err != nil {
		return nil, err
	}

	accountID := uuid.NewString()
	if name == "" {
		name = fmt.Sprintf("Account %d", index+1)
	}
	now := m.now()

	srec.Accounts = append(srec.Accounts, secretstore.AccountSecret{
		AccountID:      accountID,
		DerivationPath: key.Path,
		PrivateKeyHex:  key.PrivateKeyHex,
	})
	if err := m.secrets.Put(srec); err != nil {
		return nil, err
	}

	arec := &descriptor.AccountRecord{
		AccountID:      accountID,
		WalletID:       walletID,
		Name:           name,
		Address:        key.Address,
		DerivationPath: key.Path,
		AccountIndex:   index,
		LastActivityAt: now,
	}
	if err := m.descriptors.CreateAccount(arec); err != nil {
		return nil, err
	}

	wrec.NextAccountIndex = index + 1
	wrec.LastUsedAt = now
	if err := m.descriptors.UpdateWallet(wrec); err != nil {
		return nil, err
	}

	info := accountInfo(arec)
	return &info, nil
}
