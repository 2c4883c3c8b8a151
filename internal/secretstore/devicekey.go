package secretstore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// LoadOrCreateDeviceKey returns the device-bound key that protects
// secret records at rest, generating and persisting one on first use.
// The key file is only readable by the owning user. On platforms with
// a hardware keystore this is where an integrator would swap in their
// own provider.
func LoadOrCreateDeviceKey(path string) (string, error) {
	encodedKey, err := os.ReadFile(path)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(string(encodedKey))
		if decErr != nil {
			return "", fmt.Errorf("failed to decode device key: %v", decErr)
		}
		return string(key), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read device key: %v", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate device key: %v", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", fmt.Errorf("failed to create device key directory: %v", err)
		}
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return "", fmt.Errorf("failed to save device key: %v", err)
	}

	return string(key), nil
}
