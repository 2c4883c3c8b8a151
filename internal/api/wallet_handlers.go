package api

import (
	"net/http"

	"github.com/keyhaven/wallet-core/internal/wallet"
)

func (a *API) HandleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := a.Manager.GetAllWallets()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (a *API) HandleGetWallet(w http.ResponseWriter, r *http.Request) {
	walletID := r.URL.Query().Get("id")
	if walletID == "" {
		http.Error(w, "Missing wallet id", http.StatusBadRequest)
		return
	}
	bundle, err := a.Manager.GetWalletWithAccounts(walletID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (a *API) HandleCurrentWallet(w http.ResponseWriter, r *http.Request) {
	current, err := a.Manager.GetCurrentWallet()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (a *API) HandleCreateWallet(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Mnemonic string `json:"mnemonic,omitempty"`
		Color    string `json:"color,omitempty"`
		Icon     string `json:"icon,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	walletID, err := a.Manager.CreateWallet(wallet.CreateParams{
		Name:     req.Name,
		Mnemonic: req.Mnemonic,
		Color:    req.Color,
		Icon:     req.Icon,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"wallet_id": walletID})
}

func (a *API) HandleImportWallet(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Mnemonic string `json:"mnemonic"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	walletID, err := a.Manager.ImportWallet(req.Name, req.Mnemonic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"wallet_id": walletID})
}

func (a *API) HandleSwitchWallet(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		WalletID  string `json:"wallet_id"`
		AccountID string `json:"account_id,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.Manager.SwitchWallet(req.WalletID, req.AccountID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "switched"})
}

func (a *API) HandleRenameWallet(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		WalletID string `json:"wallet_id"`
		Name     string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.Manager.RenameWallet(req.WalletID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

func (a *API) HandleWalletOrder(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Order []string `json:"order"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.Manager.SetWalletOrder(req.Order); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleDeleteWallet requires the wallet id retyped as confirmation.
func (a *API) HandleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		WalletID     string `json:"wallet_id"`
		Confirmation string `json:"confirmation"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.Manager.DeleteWallet(req.WalletID, req.Confirmation); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		WalletID string `json:"wallet_id"`
		Name     string `json:"name,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := a.Manager.CreateAccount(req.WalletID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (a *API) HandleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		AccountID string `json:"account_id"`
		Balance   string `json:"balance"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.Manager.UpdateCachedBalance(req.AccountID, req.Balance); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
