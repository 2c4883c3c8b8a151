package api

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keyhaven/wallet-core/internal/logger"
)

// GenerateJWTKey returns a fresh 256-bit signing key.
func GenerateJWTKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate JWT key: %v", err)
	}
	return key, nil
}

// SaveJWTKey writes the key base64-encoded to keyPath, owner-readable
// only.
func SaveJWTKey(key []byte, keyPath string) error {
	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create JWT key directory: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(keyPath, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to save JWT key: %v", err)
	}
	return nil
}

// LoadJWTKey reads a key previously written by SaveJWTKey.
func LoadJWTKey(keyPath string) ([]byte, error) {
	encoded, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT key: %v", err)
	}
	key, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT key: %v", err)
	}
	return key, nil
}

// EnsureJWTKey loads the signing key at keyPath, generating and
// persisting one on first run. Tokens survive daemon restarts because
// the key does.
func EnsureJWTKey(keyPath string) ([]byte, error) {
	if _, err := os.Stat(keyPath); err == nil {
		return LoadJWTKey(keyPath)
	}
	key, err := GenerateJWTKey()
	if err != nil {
		return nil, err
	}
	if err := SaveJWTKey(key, keyPath); err != nil {
		return nil, err
	}
	logger.Info("Generated new JWT signing key at", keyPath)
	return key, nil
}
