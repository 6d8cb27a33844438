package auth

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tjmcgrath/reelbase/internal/apperror"
)

// bcryptCost is deliberately above the library default. Login throughput is
// not a bottleneck for this service; offline cracking resistance is worth
// the extra milliseconds.
const bcryptCost = 12

// Same permissive shape browsers use for input[type=email]: one @, no
// whitespace, at least one dot in the domain.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthService defines the business logic contract for authentication.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	// Authenticate resolves a bearer access token to its user. Used by the
	// RequireAuth middleware on every protected request.
	Authenticate(ctx context.Context, accessToken string) (*User, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	EmailAvailable(ctx context.Context, email string) (bool, error)
}

// authService implements AuthService.
type authService struct {
	repo    UserRepository
	tokens  *TokenManager
	lockout LockoutStore
}

// NewAuthService creates the authentication service.
func NewAuthService(repo UserRepository, tokens *TokenManager, lockout LockoutStore) AuthService {
	return &authService{repo: repo, tokens: tokens, lockout: lockout}
}

// Register validates the input, rejects duplicate usernames and emails, and
// creates the user with a bcrypt-hashed password. A successful registration
// logs the user straight in: the result carries a fresh token pair.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)

	// Collect every violation so the client can surface them all at once
	// instead of fixing fields one round-trip at a time.
	if violations := validateRegister(input); len(violations) > 0 {
		return nil, apperror.NewValidation(violations)
	}

	username := strings.ToLower(input.Username)
	if taken, err := s.repo.UsernameExists(ctx, username); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	} else if taken {
		return nil, apperror.NewConflict("username is already taken")
	}
	if taken, err := s.repo.EmailExists(ctx, input.Email); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	} else if taken {
		return nil, apperror.NewConflict("an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return s.issueTokenPair(user)
}

// Login verifies credentials for a username-or-email identifier.
//
// The lockout check happens before the credential store is touched, so a
// locked identifier gets a throttle response without leaking whether the
// account exists or the password was right. Unknown identifiers and wrong
// passwords both count as failures and both return the same generic
// unauthorized error.
func (s *authService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	identifier := strings.ToLower(strings.TrimSpace(input.Identifier))
	if identifier == "" || input.Password == "" {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	if remaining, err := s.lockout.CheckLocked(ctx, identifier); err != nil {
		// A broken lockout store must not take logins down with it.
		slog.Warn("lockout check failed, continuing without throttle", "error", err)
	} else if remaining > 0 {
		return nil, apperror.NewThrottled(int(math.Ceil(remaining.Seconds())))
	}

	user, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if apperror.IsNotFound(err) {
			s.recordFailure(ctx, identifier)
			return nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		// The attempt that trips the threshold still gets the generic
		// unauthorized response; the throttle only answers later attempts.
		s.recordFailure(ctx, identifier)
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	if err := s.lockout.Clear(ctx, identifier); err != nil {
		slog.Warn("clearing lockout state failed", "error", err)
	}
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		// Non-fatal: the login itself succeeded.
		slog.Warn("updating last login failed", "user_id", user.ID, "error", err)
	}

	return s.issueTokenPair(user)
}

func (s *authService) recordFailure(ctx context.Context, identifier string) {
	locked, err := s.lockout.RecordFailure(ctx, identifier)
	if err != nil {
		slog.Warn("recording failed login attempt failed", "error", err)
		return
	}
	if locked {
		slog.Info("login lockout started", "identifier", identifier)
	}
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token is not rotated; it stays valid until its own expiry.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			// The account was deleted after the token was minted.
			return nil, apperror.NewUnauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	access, err := s.tokens.MintAccess(user.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	return &RefreshResult{
		User:        user,
		AccessToken: access,
		ExpiresIn:   int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Authenticate resolves an access token to the user it belongs to.
func (s *authService) Authenticate(ctx context.Context, accessToken string) (*User, error) {
	userID, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid or expired token")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("invalid or expired token")
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	return user, nil
}

// UsernameAvailable reports whether a username is free to register.
func (s *authService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := s.repo.UsernameExists(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return false, fmt.Errorf("checking username availability: %w", err)
	}
	return !taken, nil
}

// EmailAvailable reports whether an email is free to register.
func (s *authService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	taken, err := s.repo.EmailExists(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, fmt.Errorf("checking email availability: %w", err)
	}
	return !taken, nil
}

func (s *authService) issueTokenPair(user *User) (*AuthResult, error) {
	access, err := s.tokens.MintAccess(user.ID)
	if err != nil {
		return nil, fmt.Errorf("minting access token: %w", err)
	}
	refresh, err := s.tokens.MintRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("minting refresh token: %w", err)
	}

	return &AuthResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// --- Validation ---

// validateRegister returns every rule the input breaks, in field order.
func validateRegister(input RegisterInput) []string {
	var violations []string

	// Length bounds count runes, not bytes, so accented names are not
	// penalized for their encoding.
	if n := utf8.RuneCountInString(input.Username); n < 3 || n > 20 {
		violations = append(violations, "username must be between 3 and 20 characters")
	}
	if strings.IndexFunc(input.Username, unicode.IsSpace) >= 0 {
		violations = append(violations, "username must not contain whitespace")
	}

	if !emailPattern.MatchString(input.Email) {
		violations = append(violations, "email must be a valid email address")
	}

	if utf8.RuneCountInString(input.Name) < 2 {
		violations = append(violations, "name must be at least 2 characters")
	} else if !validName(input.Name) {
		violations = append(violations, "name may only contain letters and spaces")
	}

	violations = append(violations, passwordViolations(input.Password)...)

	if input.ConfirmPassword != nil && *input.ConfirmPassword != input.Password {
		violations = append(violations, "passwords do not match")
	}

	return violations
}

func validName(name string) bool {
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' {
			return false
		}
	}
	return true
}

func passwordViolations(password string) []string {
	var violations []string
	if utf8.RuneCountInString(password) < 8 {
		violations = append(violations, "password must be at least 8 characters")
	}

	var hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		violations = append(violations, "password must contain an uppercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain a digit")
	}
	if !hasSpecial {
		violations = append(violations, "password must contain a special character")
	}
	return violations
}
