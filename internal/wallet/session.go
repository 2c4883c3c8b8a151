package wallet

import (
	"fmt"
	"time"

	"github.com/keyhaven/wallet-core/internal/apperrors"
	"github.com/keyhaven/wallet-core/internal/descriptor"
	"github.com/keyhaven/wallet-core/internal/logger"
)

// Unlock verifies the credential through the external verifier and,
// on success, opens a fresh session window.
func (m *Manager) Unlock(credential string) error {
	ok, err := m.verifier.Verify(credential)
	if err != nil {
		return fmt.Errorf("error verifying credential: %w", err)
	}
	if !ok {
		return apperrors.New(apperrors.CodeLocked, "credential rejected")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.descriptors.GetSession()
	if err != nil {
		return err
	}
	now := m.now()
	sess.Locked = false
	sess.UnlockedAt = now
	sess.ExpiresAt = now.Add(m.opts.SessionWindow)
	if err := m.descriptors.SaveSession(sess); err != nil {
		return err
	}
	logger.Info("Session unlocked")
	return nil
}

// Lock closes the session immediately and clears the ephemeral cache.
func (m *Manager) Lock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockLocked()
}

func (m *Manager) lockLocked() error {
	sess, err := m.descriptors.GetSession()
	if err != nil {
		return err
	}
	if sess.Locked {
		return nil
	}
	sess.Locked = true
	sess.ExpiresAt = time.Time{}
	if err := m.descriptors.SaveSession(sess); err != nil {
		return err
	}
	m.cache.ClearAll()
	logger.Info("Session locked")
	return nil
}

// IsLocked reports the effective lock state, applying the lazy expiry
// check. An expired-but-not-yet-locked session reads as locked.
func (m *Manager) IsLocked() (bool, error) {
	sess, err := m.descriptors.GetSession()
	if err != nil {
		return true, err
	}
	if sess.Locked {
		return true, nil
	}
	return !m.now().Before(sess.ExpiresAt), nil
}

// requireActiveSession is the gate in front of every secret-touching
// operation. Expiry is evaluated here, on each call, so correctness
// never depends on a timer having fired. An expired session is locked
// as a side effect so the cache gets cleared promptly.
func (m *Manager) requireActiveSession() (*descriptor.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.descriptors.GetSession()
	if err != nil {
		return nil, err
	}
	if sess.Locked {
		return nil, apperrors.New(apperrors.CodeSessionExpired, "session is locked")
	}
	if !m.now().Before(sess.ExpiresAt) {
		if err := m.lockLocked(); err != nil {
			return nil, err
		}
		return nil, apperrors.New(apperrors.CodeSessionExpired, "session window elapsed")
	}
	return sess, nil
}

// StartAutoLock runs a cooperative background task that locks the
// session once the window elapses. It is a UX affordance layered on
// top of the mandatory lazy check in requireActiveSession, never a
// substitute for it.
func (m *Manager) StartAutoLock(interval time.Duration) {
	m.mu.Lock()
	if m.autoLockStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.autoLockStop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.mu.Lock()
				sess, err := m.descriptors.GetSession()
				if err == nil && !sess.Locked && !m.now().Before(sess.ExpiresAt) {
					if lockErr := m.lockLocked(); lockErr != nil {
						logger.Error("Auto-lock failed:", lockErr)
					}
				}
				m.mu.Unlock()
			}
		}
	}()
}

// StopAutoLock cancels the auto-lock task if one is running.
func (m *Manager) StopAutoLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.autoLockStop != nil {
		close(m.autoLockStop)
		m.autoLockStop = nil
	}
}
