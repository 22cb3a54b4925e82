// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("invalid account session token")

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewVoterID creates the long-lived anonymous voter token persisted
// client-side in a cookie. Trust is purely "same cookie store".
func NewVoterID() string {
	return uuid.NewString()
}

// HashIP creates a one-way hash of an IP address for privacy.
// Includes salt to prevent rainbow table attacks. The ledger and the
// rate-limit window only ever see this hash, never the raw address.
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// First 16 hex chars (64 bits) - enough for deduplication
	return hex.EncodeToString(sum[:8])
}

// SessionClaims is the payload of an account session token. The identity
// provider that issues these is external; this package only validates them
// and extracts the stable account id.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// ParseAccountSession validates an HS256 session token and returns the
// account id from its subject claim.
func ParseAccountSession(tokenStr, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

// NewAccountSession mints a session token for the given account id.
// Used by tests and by deployments that front livetally with their own
// identity provider sharing the session secret.
func NewAccountSession(accountID, secret string, expiry time.Duration) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
