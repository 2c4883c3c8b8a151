package api

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/keyhaven/wallet-core/internal/logger"
)

// Routes builds the daemon's HTTP mux. Read-only endpoints go through
// the common chain; anything that can mutate state or touch secrets is
// additionally behind the JWT layer.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	common := []func(http.HandlerFunc) http.HandlerFunc{
		ErrorMiddleware,
		LoggingMiddleware,
		a.CORSMiddleware,
	}
	open := func(h http.HandlerFunc) http.HandlerFunc {
		return ApplyMiddleware(h, common...)
	}
	gated := func(h http.HandlerFunc) http.HandlerFunc {
		return ApplyMiddleware(h, append([]func(http.HandlerFunc) http.HandlerFunc{
			a.JWTMiddleware,
			JSONContentTypeMiddleware,
		}, common...)...)
	}

	mux.HandleFunc("/auth/unlock", ApplyMiddleware(a.HandleUnlock, append([]func(http.HandlerFunc) http.HandlerFunc{JSONContentTypeMiddleware}, common...)...))
	// Locking is a fail-safe action, so it never requires a token.
	mux.HandleFunc("/session/lock", open(a.HandleLock))
	mux.HandleFunc("/session/status", open(a.HandleSessionStatus))

	mux.HandleFunc("/wallets", open(a.HandleListWallets))
	mux.HandleFunc("/wallets/get", open(a.HandleGetWallet))
	mux.HandleFunc("/wallets/current", open(a.HandleCurrentWallet))
	mux.HandleFunc("/wallets/create", gated(a.HandleCreateWallet))
	mux.HandleFunc("/wallets/import", gated(a.HandleImportWallet))
	mux.HandleFunc("/wallets/switch", gated(a.HandleSwitchWallet))
	mux.HandleFunc("/wallets/rename", gated(a.HandleRenameWallet))
	mux.HandleFunc("/wallets/order", gated(a.HandleWalletOrder))
	mux.HandleFunc("/wallets/delete", gated(a.HandleDeleteWallet))

	mux.HandleFunc("/accounts/create", gated(a.HandleCreateAccount))
	mux.HandleFunc("/accounts/balance", gated(a.HandleUpdateBalance))

	mux.HandleFunc("/secrets/export-mnemonic", gated(a.HandleExportMnemonic))
	mux.HandleFunc("/secrets/private-key", gated(a.HandlePrivateKey))

	mux.HandleFunc("/backup/create", gated(a.HandleBackupCreate))
	mux.HandleFunc("/backup/restore", gated(a.HandleBackupRestore))

	return mux
}

// Serve runs the HTTP(S) server until it fails. TLS is driven by the
// use_https / cert_file / key_file configuration keys.
func (a *API) Serve() error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", viper.GetInt("api_port")),
		Handler:      a.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if viper.GetBool("use_https") {
		server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
			CipherSuites: []uint16{
				tls.TLS_AES_128_GCM_SHA256,
				tls.TLS_AES_256_GCM_SHA384,
				tls.TLS_CHACHA20_POLY1305_SHA256,
			},
		}
		logger.Info("Starting HTTPS server on", server.Addr)
		return server.ListenAndServeTLS(viper.GetString("cert_file"), viper.GetString("key_file"))
	}

	logger.Info("Starting HTTP server on", server.Addr)
	return server.ListenAndServe()
}
