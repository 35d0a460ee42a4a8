package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
)

var errNoToken = errors.New("missing bearer token")

// authenticator accepts HS256 bearer tokens whose subject is the owner.
type authenticator struct {
	secret  []byte
	ownerID string
}

func newAuthenticator(secret, ownerID string) *authenticator {
	return &authenticator{secret: []byte(secret), ownerID: ownerID}
}

// authorize returns the token subject. A valid token for anyone but the owner
// yields domain.ErrPermissionDenied together with the subject.
func (a *authenticator) authorize(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errNoToken
	}
	if len(a.secret) == 0 {
		return "", errors.New("authentication is not configured")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token claims")
	}

	if claims.Subject != a.ownerID {
		return claims.Subject, domain.ErrPermissionDenied
	}
	return claims.Subject, nil
}
