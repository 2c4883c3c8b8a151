package wallet

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/keyhaven/wallet-core/internal/apperrors"
	"github.com/keyhaven/wallet-core/internal/cache"
	"github.com/keyhaven/wallet-core/internal/descriptor"
	"github.com/keyhaven/wallet-core/internal/secretstore"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type testEnv struct {
	manager     *Manager
	descriptors *descriptor.Store
	secrets     *secretstore.Store
	cache       *cache.Cache
	clock       *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	secrets, err := secretstore.Open(filepath.Join(dir, "secrets"), "test-device-key")
	if err != nil {
		t.Fatalf("secretstore.Open failed: %v", err)
	}
	descriptors, err := descriptor.Open(filepath.Join(dir, "descriptors.db"))
	if err != nil {
		t.Fatalf("descriptor.Open failed: %v", err)
	}
	t.Cleanup(func() { descriptors.Close() })

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	verifier := VerifierFunc(func(credential string) (bool, error) {
		return credential == "correct-password", nil
	})
	ephemeral := cache.New()
	manager := NewManager(secrets, descriptors, ephemeral, verifier, Options{
		SessionWindow:         15 * time.Minute,
		FirstWalletAutoUnlock: true,
		NetworkID:             "1",
		Now:                   clock.Now,
	})
	t.Cleanup(manager.Close)

	return &testEnv{
		manager:     manager,
		descriptors: descriptors,
		secrets:     secrets,
		cache:       ephemeral,
		clock:       clock,
	}
}

func TestFirstWalletOnboardingScenario(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	walletID, err := m.CreateWallet(CreateParams{Name: "A"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	wallets, err := m.GetAllWallets()
	if err != nil {
		t.Fatalf("GetAllWallets failed: %v", err)
	}
	if len(wallets) != 1 {
		t.Fatalf("Expected exactly one wallet, got %d", len(wallets))
	}

	bundle, err := m.GetWalletWithAccounts(walletID)
	if err != nil {
		t.Fatalf("GetWalletWithAccounts failed: %v", err)
	}
	if len(bundle.Accounts) != 1 || bundle.Accounts[0].Index != 0 {
		t.Fatalf("Expected one account at index 0, got %+v", bundle.Accounts)
	}
	if bundle.Accounts[0].DerivationPath != "m/44'/60'/0'/0/0" {
		t.Errorf("Unexpected derivation path %s", bundle.Accounts[0].DerivationPath)
	}

	locked, err := m.IsLocked()
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if locked {
		t.Error("First wallet should auto-unlock for onboarding")
	}

	if err := m.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	_, err = m.GetAccountPrivateKey()
	if !apperrors.Is(err, apperrors.CodeSessionExpired) {
		t.Errorf("Expected SESSION_EXPIRED after lock, got %v", err)
	}
}

func TestSecondWalletStaysLocked(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	if _, err := m.CreateWallet(CreateParams{Name: "A"}); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if _, err := m.CreateWallet(CreateParams{Name: "B"}); err != nil {
		t.Fatalf("Second CreateWallet failed: %v", err)
	}
	locked, err := m.IsLocked()
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if !locked {
		t.Error("Creating a later wallet must not auto-unlock")
	}
}

func TestSequentialAccountIndices(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	walletID, err := m.CreateWallet(CreateParams{Name: "A", Mnemonic: testMnemonic})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	first, err := m.CreateAccount(walletID, "")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	second, err := m.CreateAccount(walletID, "")
	if err != nil {
		t.Fatalf("Second CreateAccount failed: %v", err)
	}
	if first.Index != 1 || second.Index != 2 {
		t.Errorf("Expected indices 1 and 2, got %d and %d", first.Index, second.Index)
	}
	if first.Address == second.Address {
		t.Error("Two accounts share an address")
	}
}

func TestCreateAccountRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	walletID, err := m.CreateWallet(CreateParams{Name: "A"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if _, err := m.CreateAccount(walletID, ""); !apperrors.Is(err, apperrors.CodeSessionExpired) {
		t.Errorf("Expected SESSION_EXPIRED, got %v", err)
	}
}

func TestLazySessionExpiry(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	if _, err := m.CreateWallet(CreateParams{Name: "A"}); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	env.cache.Set("price:eth", 1, cache.ClassPrice, cache.PriorityNormal)

	env.clock.Advance(16 * time.Minute) // window is 15m

	locked, err := m.IsLocked()
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if !locked {
		t.Error("Expired session should read as locked without any timer")
	}
	if _, err := m.GetAccountPrivateKey(); !apperrors.Is(err, apperrors.CodeSessionExpired) {
		t.Errorf("Expected SESSION_EXPIRED, got %v", err)
	}
	// The lazy expiry transition clears the ephemeral tier.
	if env.cache.Len() != 0 {
		t.Error("Cache should be cleared when expiry is detected")
	}
}

func TestUnlockRestoresAccess(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	if _, err := m.CreateWallet(CreateParams{Name: "A"}); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	if err := m.Unlock("wrong-password"); !apperrors.Is(err, apperrors.CodeLocked) {
		t.Errorf("Expected LOCKED for bad credential, got %v", err)
	}
	if locked, _ := m.IsLocked(); !locked {
		t.Error("Failed unlock must keep the session locked")
	}

	if err := m.Unlock("correct-password"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if _, err := m.GetAccountPrivateKey(); err != nil {
		t.Errorf("Expected private key access after unlock, got %v", err)
	}
}

func TestExportMnemonicRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	walletID, err := m.CreateWallet(CreateParams{Name: "A", Mnemonic: testMnemonic})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	mnemonic, err := m.ExportMnemonic(walletID)
	if err != nil {
		t.Fatalf("ExportMnemonic failed: %v", err)
	}
	if mnemonic != testMnemonic {
		t.Error("Exported mnemonic differs from imported one")
	}

	if _, err := m.ExportMnemonic("missing-id"); !apperrors.Is(err, apperrors.CodeWalletNotFound) {
		t.Errorf("Expected WALLET_NOT_FOUND, got %v", err)
	}
}

func TestImportWalletValidation(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	if _, err := m.ImportWallet("bad", "definitely not a mnemonic"); !apperrors.Is(err, apperrors.CodeInvalidSeed) {
		t.Errorf("Expected INVALID_SEED, got %v", err)
	}
	if _, err := m.ImportWallet("bad", ""); !apperrors.Is(err, apperrors.CodeInvalidSeed) {
		t.Errorf("Expected INVALID_SEED for empty mnemonic, got %v", err)
	}

	walletID, err := m.ImportWallet("good", testMnemonic)
	if err != nil {
		t.Fatalf("ImportWallet failed: %v", err)
	}
	bundle, err := m.GetWalletWithAccounts(walletID)
	if err != nil {
		t.Fatalf("GetWalletWithAccounts failed: %v", err)
	}
	if bundle.Wallet.Category != CategoryImported {
		t.Errorf("Expected imported category, got %s", bundle.Wallet.Category)
	}
	// Known address for the test vector at index 0.
	if got := bundle.Accounts[0].Address; got != "0x9858EfFD232B4033E47d90003D41EC34EcaEda94" {
		t.Errorf("Unexpected account 0 address %s", got)
	}
}

func TestSwitchWalletValidation(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	walletA, err := m.CreateWallet(CreateParams{Name: "A"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	walletB, err := m.CreateWallet(CreateParams{Name: "B"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	if err := m.SwitchWallet("missing", ""); !apperrors.Is(err, apperrors.CodeWalletNotFound) {
		t.Errorf("Expected WALLET_NOT_FOUND, got %v", err)
	}

	bundleA, err := m.GetWalletWithAccounts(walletA)
	if err != nil {
		t.Fatalf("GetWalletWithAccounts failed: %v", err)
	}
	if err := m.SwitchWallet(walletB, bundleA.Accounts[0].ID); !apperrors.Is(err, apperrors.CodeAccountMismatch) {
		t.Errorf("Expected ACCOUNT_MISMATCH, got %v", err)
	}

	if err := m.SwitchWallet(walletA, ""); err != nil {
		t.Fatalf("SwitchWallet failed: %v", err)
	}
	current, err := m.GetCurrentWallet()
	if err != nil {
		t.Fatalf("GetCurrentWallet failed: %v", err)
	}
	if current.Wallet.ID != walletA || current.Account.Index != 0 {
		t.Errorf("Expected wallet A account 0 current, got %+v", current)
	}
}

func TestSwitchResetsSessionExpiry(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	walletID, err := m.CreateWallet(CreateParams{Name: "A"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	env.clock.Advance(10 * time.Minute)
	if err := m.SwitchWallet(walletID, ""); err != nil {
		t.Fatalf("SwitchWallet failed: %v", err)
	}
	// Another 10 minutes would have crossed the original window.
	env.clock.Advance(10 * time.Minute)
	if locked, _ := m.IsLocked(); locked {
		t.Error("SwitchWallet should have reset the session expiry")
	}
}

func TestDeleteWalletConfirmation(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	walletID, err := m.CreateWallet(CreateParams{Name: "A"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if err := m.DeleteWallet(walletID, "not-the-id"); err == nil {
		t.Fatal("Expected confirmation mismatch error")
	}
	if wallets, _ := m.GetAllWallets(); len(wallets) != 1 {
		t.Error("Wallet deleted despite bad confirmation")
	}
}

func TestDeleteWalletCascadesAndSwitches(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	walletA, err := m.CreateWallet(CreateParams{Name: "A"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	walletB, err := m.CreateWallet(CreateParams{Name: "B"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	// B is current (created last). Delete it; selection must fall to A,
	// locked, on A's first account.
	if err := m.DeleteWallet(walletB, walletB); err != nil {
		t.Fatalf("DeleteWallet failed: %v", err)
	}

	if _, err := env.secrets.Get(walletB); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("Secret record survived deletion: %v", err)
	}
	if _, err := m.GetWalletWithAccounts(walletB); !apperrors.Is(err, apperrors.CodeWalletNotFound) {
		t.Errorf("Descriptor record survived deletion: %v", err)
	}

	current, err := m.GetCurrentWallet()
	if err != nil {
		t.Fatalf("GetCurrentWallet failed: %v", err)
	}
	if current.Wallet.ID != walletA {
		t.Errorf("Expected auto-switch to wallet A, got %s", current.Wallet.ID)
	}
	if !current.Locked {
		t.Error("Auto-switched session must be locked")
	}

	// Delete the last wallet: back to the no-wallet state.
	if err := m.DeleteWallet(walletA, walletA); err != nil {
		t.Fatalf("DeleteWallet failed: %v", err)
	}
	if _, err := m.GetCurrentWallet(); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("Expected NOT_FOUND with no wallets, got %v", err)
	}
	if wallets, _ := m.GetAllWallets(); len(wallets) != 0 {
		t.Errorf("Expected no wallets, got %d", len(wallets))
	}
}

func TestDisplayOrderNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	first, err := m.CreateWallet(CreateParams{Name: "A"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	second, err := m.CreateWallet(CreateParams{Name: "B"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	wallets, err := m.GetAllWallets()
	if err != nil {
		t.Fatalf("GetAllWallets failed: %v", err)
	}
	if wallets[0].ID != second || wallets[1].ID != first {
		t.Errorf("Expected newest-first order, got %s then %s", wallets[0].ID, wallets[1].ID)
	}

	if err := m.SetWalletOrder([]string{first, second}); err != nil {
		t.Fatalf("SetWalletOrder failed: %v", err)
	}
	wallets, err = m.GetAllWallets()
	if err != nil {
		t.Fatalf("GetAllWallets failed: %v", err)
	}
	if wallets[0].ID != first {
		t.Error("Explicit order not applied")
	}

	if err := m.SetWalletOrder([]string{"missing"}); !apperrors.Is(err, apperrors.CodeWalletNotFound) {
		t.Errorf("Expected WALLET_NOT_FOUND for unknown id in order, got %v", err)
	}
}

func TestDigestVerifier(t *testing.T) {
	env := newTestEnv(t)

	verifier := NewDigestVerifier(env.descriptors)
	ok, err := verifier.Verify("anything")
	if err != nil || ok {
		t.Errorf("Verifier should reject before a credential is set (ok=%v err=%v)", ok, err)
	}

	if err := SetCredential(env.descriptors, "hunter2"); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}
	if ok, err := verifier.Verify("hunter2"); err != nil || !ok {
		t.Errorf("Expected match (ok=%v err=%v)", ok, err)
	}
	if ok, err := verifier.Verify("hunter3"); err != nil || ok {
		t.Errorf("Expected mismatch (ok=%v err=%v)", ok, err)
	}
}
