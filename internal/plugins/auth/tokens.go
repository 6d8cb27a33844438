package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tjmcgrath/reelbase/internal/config"
)

// Token types embedded in the token_type claim. Verification checks the
// claim so an access token can never be replayed against the refresh
// endpoint or vice versa.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errInvalidToken = errors.New("invalid token")

// Claims is the JWT payload for both token kinds. Subject carries the
// user's UUID.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies the HS256-signed access and refresh
// tokens. The two kinds are signed with separate secrets, so a leaked
// access secret does not compromise long-lived refresh tokens.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager creates a token manager from the auth configuration.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.Secret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// MintAccess signs a short-lived access token for the given user.
func (m *TokenManager) MintAccess(userID string) (string, error) {
	return m.mint(userID, tokenTypeAccess, m.accessSecret, m.accessTTL)
}

// MintRefresh signs a long-lived refresh token for the given user.
func (m *TokenManager) MintRefresh(userID string) (string, error) {
	return m.mint(userID, tokenTypeRefresh, m.refreshSecret, m.refreshTTL)
}

func (m *TokenManager) mint(userID, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", tokenType, err)
	}

	return signed, nil
}

// VerifyAccess validates an access token and returns the user ID it was
// minted for. Expired, malformed, wrongly-signed, and refresh-type tokens
// all fail with errInvalidToken.
func (m *TokenManager) VerifyAccess(token string) (string, error) {
	return m.verify(token, tokenTypeAccess, m.accessSecret)
}

// VerifyRefresh validates a refresh token and returns the user ID.
// Access-type tokens are rejected even though they are validly signed.
func (m *TokenManager) VerifyRefresh(token string) (string, error) {
	return m.verify(token, tokenTypeRefresh, m.refreshSecret)
}

func (m *TokenManager) verify(token, wantType string, secret []byte) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		// Reject any algorithm other than HMAC. Without this check a
		// token signed with "none" or an asymmetric key confusion attack
		// could slip through.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", errInvalidToken
	}
	if claims.TokenType != wantType || claims.Subject == "" {
		return "", errInvalidToken
	}

	return claims.Subject, nil
}
