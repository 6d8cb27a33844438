// Package auth handles user accounts, credential verification, and bearer
// tokens for Reelbase. It provides registration, login, token refresh, and
// the admission-gate middleware in front of protected endpoints. Access and
// refresh tokens are signed JWTs; nothing about a session is stored server
// side beyond the user row and the login lockout counters.
package auth

import (
	"time"
)

// User represents a registered Reelbase user. This is the domain model used
// throughout the application. Database scanning and JSON marshaling use this
// struct directly.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"` // Never expose in JSON responses.
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the data submitted to POST /api/auth/register.
// ConfirmPassword is a pointer so a client that doesn't send the
// confirmation field is distinguishable from one that sent it empty.
type RegisterRequest struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	Password        string  `json:"password"`
	ConfirmPassword *string `json:"confirmPassword,omitempty"`
}

// LoginRequest holds the data submitted to POST /api/auth/login.
// Identifier is a username or an email, matched case-insensitively.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// RefreshRequest holds the body variant of POST /api/auth/refresh. The
// token may equally arrive in the refreshToken cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the input for creating a new user.
type RegisterInput struct {
	Username        string
	Email           string
	Name            string
	Password        string
	ConfirmPassword *string
}

// LoginInput is the input for authenticating a user.
type LoginInput struct {
	Identifier string
	Password   string
}

// --- Service results ---

// AuthResult is what Register and Login hand back: the public user record
// plus a freshly minted token pair.
type AuthResult struct {
	User         *User
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds, echoed to clients
	// so they can schedule a refresh.
	ExpiresIn int
}

// RefreshResult is what Refresh hands back. Only the access token is
// re-minted; the refresh token is not rotated.
type RefreshResult struct {
	User        *User
	AccessToken string
	ExpiresIn   int
}

// AuthResponse is the JSON body for register/login responses.
type AuthResponse struct {
	User         *User  `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn"`
}
