package api

import (
	"encoding/json"
	"net/http"

	"github.com/keyhaven/wallet-core/internal/apperrors"
	"github.com/keyhaven/wallet-core/internal/backup"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.CodeNotFound, apperrors.CodeWalletNotFound:
		status = http.StatusNotFound
	case apperrors.CodeLocked, apperrors.CodeSessionExpired:
		status = http.StatusUnauthorized
	case apperrors.CodeInvalidSeed, apperrors.CodeAccountMismatch:
		status = http.StatusBadRequest
	case apperrors.CodeIntegrityCheckFailed, apperrors.CodeDecryptionFailed, apperrors.CodeCorruptRecord:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: string(code)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// HandleUnlock verifies the credential, opens the session window and
// mints a bearer token for the subsequent gated calls.
func (a *API) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Credential string `json:"credential"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.Manager.Unlock(req.Credential); err != nil {
		writeError(w, err)
		return
	}
	token, expiresAt, err := a.GenerateJWT("local")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (a *API) HandleLock(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := a.Manager.Lock(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

func (a *API) HandleSessionStatus(w http.ResponseWriter, r *http.Request) {
	locked, err := a.Manager.IsLocked()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"locked": locked})
}

// HandleExportMnemonic returns a wallet's seed phrase. The response is
// never logged; the manager enforces the session gate.
func (a *API) HandleExportMnemonic(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		WalletID string `json:"wallet_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	mnemonic, err := a.Manager.ExportMnemonic(req.WalletID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mnemonic": mnemonic})
}

func (a *API) HandlePrivateKey(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	key, err := a.Manager.GetAccountPrivateKey()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"private_key": key})
}

func (a *API) HandleBackupCreate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Passphrase      string `json:"passphrase"`
		IncludeSettings bool   `json:"include_settings"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	payload, err := a.Backup.Create(backup.CreateOptions{
		Passphrase:      req.Passphrase,
		IncludeSettings: req.IncludeSettings,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payload": string(payload)})
}

func (a *API) HandleBackupRestore(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Payload           string `json:"payload"`
		Passphrase        string `json:"passphrase"`
		OverwriteExisting bool   `json:"overwrite_existing"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := a.Backup.Restore([]byte(req.Payload), backup.RestoreOptions{
		Passphrase:        req.Passphrase,
		OverwriteExisting: req.OverwriteExisting,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
