// Package wallet is the orchestrator of the custody core: the only
// component that coordinates the secret store, descriptor store and
// ephemeral cache. All wallet/account lifecycle, session state and
// secret export gating goes through the Manager.
package wallet

import (
	"sync"
	"time"

	"github.com/keyhaven/wallet-core/internal/cache"
	"github.com/keyhaven/wallet-core/internal/descriptor"
	"github.com/keyhaven/wallet-core/internal/secretstore"
)

const (
	CategoryCreated  = "created"
	CategoryImported = "imported"
)

// CredentialVerifier is the external authentication collaborator
// (password check, biometric prompt). Unlock only flips session state
// when Verify reports success.
type CredentialVerifier interface {
	Verify(credential string) (bool, error)
}

// VerifierFunc adapts a function to the CredentialVerifier interface.
type VerifierFunc func(credential string) (bool, error)

func (f VerifierFunc) Verify(credential string) (bool, error) {
	return f(credential)
}

// Options tune session behavior. Zero values fall back to defaults.
type Options struct {
	// SessionWindow is how long an unlock lasts before secret access
	// fails closed again.
	SessionWindow time.Duration

	// FirstWalletAutoUnlock keeps the onboarding flow alive: the very
	// first wallet ever created starts an unlocked session instead of
	// demanding an immediate re-authentication.
	FirstWalletAutoUnlock bool

	// NetworkID is the initial network selection for new sessions.
	NetworkID string

	// Now is a clock hook for tests.
	Now func() time.Time
}

const DefaultSessionWindow = 15 * time.Minute

// Manager owns the custody state machine.
type Manager struct {
	secrets     *secretstore.Store
	descriptors *descriptor.Store
	cache       *cache.Cache
	verifier    CredentialVerifier
	opts        Options

	// mu guards session transitions; walletLocks serializes account
	// index allocation per wallet id.
	mu          sync.Mutex
	walletLocks sync.Map

	autoLockStop chan struct{}
}

// NewManager wires the three stores and the credential verifier
// together. Instances are independent so tests can build isolated
// managers per case.
func NewManager(secrets *secretstore.Store, descriptors *descriptor.Store, ephemeral *cache.Cache, verifier CredentialVerifier, opts Options) *Manager {
	if opts.SessionWindow <= 0 {
		opts.SessionWindow = DefaultSessionWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		secrets:     secrets,
		descriptors: descriptors,
		cache:       ephemeral,
		verifier:    verifier,
		opts:        opts,
	}
}

// Close stops background tasks. Store handles are owned by the caller
// that opened them.
func (m *Manager) Close() {
	m.StopAutoLock()
}

func (m *Manager) now() time.Time {
	return m.opts.Now()
}

func (m *Manager) walletLock(walletID string) *sync.Mutex {
	lock, _ := m.walletLocks.LoadOrStore(walletID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
