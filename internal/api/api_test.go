package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/keyhaven/wallet-core/internal/backup"
	"github.com/keyhaven/wallet-core/internal/cache"
	"github.com/keyhaven/wallet-core/internal/descriptor"
	"github.com/keyhaven/wallet-core/internal/secretstore"
	"github.com/keyhaven/wallet-core/internal/wallet"
)

func newTestAPI(t *testing.T) (*API, string) {
	t.Helper()
	dir := t.TempDir()

	secrets, err := secretstore.Open(filepath.Join(dir, "secrets"), "device-key")
	if err != nil {
		t.Fatalf("secretstore.Open failed: %v", err)
	}
	descriptors, err := descriptor.Open(filepath.Join(dir, "descriptors.db"))
	if err != nil {
		t.Fatalf("descriptor.Open failed: %v", err)
	}
	t.Cleanup(func() { descriptors.Close() })

	verifier := wallet.VerifierFunc(func(credential string) (bool, error) {
		return credential == "open-sesame", nil
	})
	manager := wallet.NewManager(secrets, descriptors, cache.New(), verifier, wallet.Options{
		SessionWindow:         15 * time.Minute,
		FirstWalletAutoUnlock: true,
	})
	t.Cleanup(manager.Close)

	jwtKey, err := GenerateJWTKey()
	if err != nil {
		t.Fatalf("GenerateJWTKey failed: %v", err)
	}
	a := NewAPI(manager, backup.NewService(secrets, descriptors), jwtKey, 15*time.Minute)

	walletID, err := manager.CreateWallet(wallet.CreateParams{Name: "Main"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	return a, walletID
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func unlock(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/auth/unlock", "", map[string]string{"credential": "open-sesame"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Unlock returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("Unlock response missing token: %s", rec.Body.String())
	}
	return resp.Token
}

func TestUnlockMintsUsableToken(t *testing.T) {
	a, walletID := newTestAPI(t)
	mux := a.Routes()

	token := unlock(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/secrets/export-mnemonic", token, map[string]string{"wallet_id": walletID})
	if rec.Code != http.StatusOK {
		t.Fatalf("Export returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Mnemonic string `json:"mnemonic"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Mnemonic == "" {
		t.Fatalf("Export response missing mnemonic: %s", rec.Body.String())
	}
}

func TestUnlockRejectsBadCredential(t *testing.T) {
	a, _ := newTestAPI(t)
	mux := a.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/auth/unlock", "", map[string]string{"credential": "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad credential, got %d", rec.Code)
	}
}

func TestGatedEndpointsRequireToken(t *testing.T) {
	a, walletID := newTestAPI(t)
	mux := a.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/secrets/export-mnemonic", "", map[string]string{"wallet_id": walletID})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodPost, "/secrets/export-mnemonic", "not-a-jwt", map[string]string{"wallet_id": walletID})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestTokenDoesNotBypassSessionGate(t *testing.T) {
	a, walletID := newTestAPI(t)
	mux := a.Routes()

	token := unlock(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/session/lock", "", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("Lock returned %d", rec.Code)
	}

	// The bearer token is still valid, but the session is locked; the
	// manager's gate must win.
	rec = doJSON(t, mux, http.MethodPost, "/secrets/export-mnemonic", token, map[string]string{"wallet_id": walletID})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 after lock, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Code != "SESSION_EXPIRED" {
		t.Errorf("Expected SESSION_EXPIRED code, got %s", rec.Body.String())
	}
}

func TestSessionStatusIsOpen(t *testing.T) {
	a, _ := newTestAPI(t)
	mux := a.Routes()

	rec := doJSON(t, mux, http.MethodGet, "/session/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status returned %d", rec.Code)
	}
	var resp struct {
		Locked bool `json:"locked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if resp.Locked {
		t.Error("First wallet auto-unlock should leave the session open")
	}
}

func TestContentTypeEnforced(t *testing.T) {
	a, _ := newTestAPI(t)
	mux := a.Routes()

	req := httptest.NewRequest(http.MethodPost, "/auth/unlock", bytes.NewBufferString(`{"credential":"open-sesame"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected 415 without JSON content type, got %d", rec.Code)
	}
}

func TestWalletEndpointsRoundTrip(t *testing.T) {
	a, walletID := newTestAPI(t)
	mux := a.Routes()
	token := unlock(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/accounts/create", token, map[string]string{"wallet_id": walletID})
	if rec.Code != http.StatusOK {
		t.Fatalf("CreateAccount returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodGet, "/wallets/get?id="+walletID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GetWallet returned %d", rec.Code)
	}
	var bundle struct {
		Accounts []struct {
			Index uint32 `json:"index"`
		} `json:"accounts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode wallet: %v", err)
	}
	if len(bundle.Accounts) != 2 || bundle.Accounts[1].Index != 1 {
		t.Errorf("Expected two accounts with sequential indices, got %+v", bundle.Accounts)
	}

	rec = doJSON(t, mux, http.MethodGet, "/wallets/get?id=unknown", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown wallet, got %d", rec.Code)
	}
}

func TestJWTKeyPersistence(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "keys", "jwt_key")

	first, err := EnsureJWTKey(keyPath)
	if err != nil {
		t.Fatalf("EnsureJWTKey failed: %v", err)
	}
	second, err := EnsureJWTKey(keyPath)
	if err != nil {
		t.Fatalf("EnsureJWTKey (reload) failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("JWT key changed across restarts")
	}
	if len(first) != 32 {
		t.Errorf("Expected 256-bit key, got %d bytes", len(first))
	}
}
