// Package api exposes the custody core over HTTP for a local frontend.
// Session gating lives in the wallet manager; the JWT layer here only
// authenticates the frontend to the daemon, it is not the secret gate.
package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/keyhaven/wallet-core/internal/backup"
	"github.com/keyhaven/wallet-core/internal/wallet"
)

const DefaultTokenTTL = 15 * time.Minute

type API struct {
	Manager *wallet.Manager
	Backup  *backup.Service

	jwtKey   []byte
	tokenTTL time.Duration
}

func NewAPI(manager *wallet.Manager, backupSvc *backup.Service, jwtKey []byte, tokenTTL time.Duration) *API {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &API{
		Manager:  manager,
		Backup:   backupSvc,
		jwtKey:   jwtKey,
		tokenTTL: tokenTTL,
	}
}

// Claims carried by the session tokens minted on unlock.
type Claims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// GenerateJWT mints a bearer token for the frontend after a successful
// unlock.
func (a *API) GenerateJWT(sessionID string) (string, time.Time, error) {
	if len(a.jwtKey) == 0 {
		return "", time.Time{}, fmt.Errorf("JWT signing key not available")
	}
	expiresAt := time.Now().Add(a.tokenTTL)
	claims := &Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.jwtKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
