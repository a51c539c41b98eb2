// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidStationKey = errors.New("invalid station key")
	ErrInvalidToken      = errors.New("invalid token format")
)

// AccessTokenCookie holds the operator's backend bearer token
const AccessTokenCookie = "accessToken"

// accessTokenMaxAge keeps the operator signed in across event days
const accessTokenMaxAge = 50 * 365 * 24 * time.Hour

// GenerateStationID creates a new station identifier
func GenerateStationID() string {
	return uuid.NewString()
}

// ValidStationID reports whether id is a well-formed station identifier
func ValidStationID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GenerateStationKey creates an HMAC-based key for a station
// This is deterministic and verifiable
func GenerateStationKey(stationID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(stationID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateStationKey checks if the provided key is valid for the station
func ValidateStationKey(stationID, key, salt string) error {
	expected := GenerateStationKey(stationID, salt)
	if !hmac.Equal([]byte(key), []byte(expected)) {
		return ErrInvalidStationKey
	}
	return nil
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for deduplication
	return hex.EncodeToString(sum[:8])
}

// AccessToken returns the operator's bearer token from the request cookie
func AccessToken(r *http.Request) string {
	c, err := r.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// RequestToken returns the operator's token for backend calls. A bearer
// Authorization header wins over the cookie.
func RequestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return AccessToken(r)
}

// NewAccessTokenCookie builds the long-lived token cookie
func NewAccessTokenCookie(token string, secure bool) (*http.Cookie, error) {
	if token == "" || strings.ContainsAny(token, " ;,\"") {
		return nil, ErrInvalidToken
	}
	return &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(accessTokenMaxAge.Seconds()),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// ClearAccessTokenCookie expires the token cookie
func ClearAccessTokenCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
