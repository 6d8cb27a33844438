package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tjmcgrath/reelbase/internal/apperror"
	"github.com/tjmcgrath/reelbase/internal/config"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn           func(ctx context.Context, user *User) error
	findByIDFn         func(ctx context.Context, id string) (*User, error)
	findByIdentifierFn func(ctx context.Context, identifier string) (*User, error)
	usernameExistsFn   func(ctx context.Context, username string) (bool, error)
	emailExistsFn      func(ctx context.Context, email string) (bool, error)
	updateLastLoginFn  func(ctx context.Context, id string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	if m.findByIdentifierFn != nil {
		return m.findByIdentifierFn(ctx, identifier)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	if m.usernameExistsFn != nil {
		return m.usernameExistsFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id)
	}
	return nil
}

// --- Mock LockoutStore ---

type mockLockout struct {
	checkLockedFn   func(ctx context.Context, identifier string) (time.Duration, error)
	recordFailureFn func(ctx context.Context, identifier string) (bool, error)
	clearFn         func(ctx context.Context, identifier string) error
}

func (m *mockLockout) CheckLocked(ctx context.Context, identifier string) (time.Duration, error) {
	if m.checkLockedFn != nil {
		return m.checkLockedFn(ctx, identifier)
	}
	return 0, nil
}

func (m *mockLockout) RecordFailure(ctx context.Context, identifier string) (bool, error) {
	if m.recordFailureFn != nil {
		return m.recordFailureFn(ctx, identifier)
	}
	return false, nil
}

func (m *mockLockout) Clear(ctx context.Context, identifier string) error {
	if m.clearFn != nil {
		return m.clearFn(ctx, identifier)
	}
	return nil
}

// --- Helpers ---

func testTokenManager() *TokenManager {
	return NewTokenManager(config.AuthConfig{
		Secret:          "test-access-secret-0123456789abcdef",
		RefreshSecret:   "test-refresh-secret-0123456789abcdef",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

func newTestService(repo UserRepository, lockout LockoutStore) AuthService {
	if repo == nil {
		repo = &mockUserRepo{}
	}
	if lockout == nil {
		lockout = &mockLockout{}
	}
	return NewAuthService(repo, testTokenManager(), lockout)
}

// testHash returns a bcrypt hash of the password at minimum cost to keep
// the suite fast.
func testHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}
	return string(hash)
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Name:     "Alice Smith",
		Password: "Sup3rSecret!",
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) *apperror.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
	return appErr
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	var created *User
	repo := &mockUserRepo{
		createFn: func(_ context.Context, user *User) error {
			created = user
			return nil
		},
	}
	svc := newTestService(repo, nil)

	result, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if created == nil {
		t.Fatal("expected user to be persisted")
	}
	if created.ID == "" {
		t.Error("expected a generated user ID")
	}
	if created.Username != "alice" || created.Email != "alice@example.com" {
		t.Errorf("unexpected stored identity: %q / %q", created.Username, created.Email)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("Sup3rSecret!")); err != nil {
		t.Error("stored hash does not verify against the password")
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("expected a token pair")
	}
	if result.ExpiresIn != 3600 {
		t.Errorf("expected expiresIn 3600, got %d", result.ExpiresIn)
	}
}

func TestRegister_NormalizesIdentity(t *testing.T) {
	var created *User
	repo := &mockUserRepo{
		createFn: func(_ context.Context, user *User) error {
			created = user
			return nil
		},
	}
	svc := newTestService(repo, nil)

	input := validRegisterInput()
	input.Username = "  Alice "
	input.Email = " Alice@Example.COM "
	if _, err := svc.Register(context.Background(), input); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if created.Username != "alice" {
		t.Errorf("expected lowercased username, got %q", created.Username)
	}
	if created.Email != "alice@example.com" {
		t.Errorf("expected lowercased email, got %q", created.Email)
	}
}

func TestRegister_ReportsAllViolations(t *testing.T) {
	svc := newTestService(nil, nil)

	confirm := "different"
	_, err := svc.Register(context.Background(), RegisterInput{
		// Interior whitespace survives the trim, and 21 runes break the
		// length bound, so both username rules fire.
		Username:        "a b c d e f g h i j k",
		Email:           "not-an-email", // malformed
		Name:            "X1",           // digit
		Password:        "short",        // too short, no upper, no digit, no special
		ConfirmPassword: &confirm,       // mismatch
	})

	appErr := assertAppError(t, err, 400)
	want := []string{
		"username must be between 3 and 20 characters",
		"username must not contain whitespace",
		"email must be a valid email address",
		"name may only contain letters and spaces",
		"password must be at least 8 characters",
		"password must contain an uppercase letter",
		"password must contain a digit",
		"password must contain a special character",
		"passwords do not match",
	}
	if len(appErr.Errors) != len(want) {
		t.Fatalf("expected %d violations, got %d: %v", len(want), len(appErr.Errors), appErr.Errors)
	}
	for i, v := range want {
		if appErr.Errors[i] != v {
			t.Errorf("violation %d: expected %q, got %q", i, v, appErr.Errors[i])
		}
	}
}

func TestRegister_LengthBoundsCountRunes(t *testing.T) {
	svc := newTestService(nil, nil)

	// 15 accented runes is 30 bytes; it must still fit the 20-char cap.
	input := validRegisterInput()
	input.Username = strings.Repeat("é", 15)
	if _, err := svc.Register(context.Background(), input); err != nil {
		t.Fatalf("Register with multibyte username: %v", err)
	}

	// 21 runes breaks the cap regardless of byte width.
	input.Username = strings.Repeat("é", 21)
	_, err := svc.Register(context.Background(), input)
	appErr := assertAppError(t, err, 400)
	if len(appErr.Errors) != 1 || appErr.Errors[0] != "username must be between 3 and 20 characters" {
		t.Errorf("expected only the length violation, got %v", appErr.Errors)
	}

	// An 8-rune password with multibyte characters satisfies the minimum.
	input = validRegisterInput()
	input.Password = "Aé1!éééé"
	if _, err := svc.Register(context.Background(), input); err != nil {
		t.Fatalf("Register with multibyte password: %v", err)
	}
}

func TestRegister_SurroundingWhitespaceTrimmedNotRejected(t *testing.T) {
	// Leading/trailing whitespace is normalized away before validation;
	// only interior whitespace violates the username rule.
	svc := newTestService(nil, nil)

	input := validRegisterInput()
	input.Username = "  alice  "
	if _, err := svc.Register(context.Background(), input); err != nil {
		t.Fatalf("Register with padded username: %v", err)
	}

	input.Username = "al ice"
	_, err := svc.Register(context.Background(), input)
	appErr := assertAppError(t, err, 400)
	if len(appErr.Errors) != 1 || appErr.Errors[0] != "username must not contain whitespace" {
		t.Errorf("expected only the whitespace violation, got %v", appErr.Errors)
	}
}

func TestRegister_ConfirmPasswordOptional(t *testing.T) {
	svc := newTestService(nil, nil)

	// No confirmation field at all: registration succeeds.
	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("Register without confirmPassword: %v", err)
	}

	// Present but empty: counts as a mismatch.
	input := validRegisterInput()
	empty := ""
	input.ConfirmPassword = &empty
	_, err := svc.Register(context.Background(), input)
	appErr := assertAppError(t, err, 400)
	found := false
	for _, v := range appErr.Errors {
		if v == "passwords do not match" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected mismatch violation, got %v", appErr.Errors)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	repo := &mockUserRepo{
		usernameExistsFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
	}
	svc := newTestService(repo, nil)

	_, err := svc.Register(context.Background(), validRegisterInput())
	assertAppError(t, err, 409)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{
		emailExistsFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
	}
	svc := newTestService(repo, nil)

	_, err := svc.Register(context.Background(), validRegisterInput())
	assertAppError(t, err, 409)
}

// --- Login ---

func loginRepo(t *testing.T, password string) (*mockUserRepo, *User) {
	t.Helper()
	user := &User{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@example.com",
		Name:         "Alice Smith",
		PasswordHash: testHash(t, password),
	}
	repo := &mockUserRepo{
		findByIdentifierFn: func(_ context.Context, identifier string) (*User, error) {
			if identifier == user.Username || identifier == user.Email {
				return user, nil
			}
			return nil, apperror.NewNotFound("user not found")
		},
		findByIDFn: func(_ context.Context, id string) (*User, error) {
			if id == user.ID {
				return user, nil
			}
			return nil, apperror.NewNotFound("user not found")
		},
	}
	return repo, user
}

func TestLogin_Success(t *testing.T) {
	repo, user := loginRepo(t, "Sup3rSecret!")
	cleared := false
	lockout := &mockLockout{
		clearFn: func(_ context.Context, identifier string) error {
			if identifier != "alice" {
				t.Errorf("expected cleared identifier %q, got %q", "alice", identifier)
			}
			cleared = true
			return nil
		},
	}
	svc := newTestService(repo, lockout)

	result, err := svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "Sup3rSecret!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.User.ID != user.ID {
		t.Errorf("expected user %q, got %q", user.ID, result.User.ID)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("expected a token pair")
	}
	if !cleared {
		t.Error("expected lockout state to be cleared on success")
	}
}

func TestLogin_EmailIdentifierCaseInsensitive(t *testing.T) {
	repo, _ := loginRepo(t, "Sup3rSecret!")
	svc := newTestService(repo, nil)

	if _, err := svc.Login(context.Background(), LoginInput{Identifier: "Alice@Example.COM", Password: "Sup3rSecret!"}); err != nil {
		t.Fatalf("Login with mixed-case email: %v", err)
	}
}

func TestLogin_UnknownIdentifierIsGenericAndCounted(t *testing.T) {
	recorded := ""
	lockout := &mockLockout{
		recordFailureFn: func(_ context.Context, identifier string) (bool, error) {
			recorded = identifier
			return false, nil
		},
	}
	svc := newTestService(&mockUserRepo{}, lockout)

	_, err := svc.Login(context.Background(), LoginInput{Identifier: "Ghost", Password: "whatever"})
	appErr := assertAppError(t, err, 401)
	if strings.Contains(strings.ToLower(appErr.Message), "user") {
		t.Errorf("message must not reveal whether the account exists: %q", appErr.Message)
	}
	if recorded != "ghost" {
		t.Errorf("expected failure recorded for %q, got %q", "ghost", recorded)
	}
}

func TestLogin_WrongPasswordIsGenericAndCounted(t *testing.T) {
	repo, _ := loginRepo(t, "Sup3rSecret!")
	recorded := 0
	lockout := &mockLockout{
		recordFailureFn: func(_ context.Context, _ string) (bool, error) {
			recorded++
			return false, nil
		},
	}
	svc := newTestService(repo, lockout)

	_, err := svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "wrong"})
	assertAppError(t, err, 401)
	if recorded != 1 {
		t.Errorf("expected 1 recorded failure, got %d", recorded)
	}
}

func TestLogin_ThresholdAttemptStillUnauthorized(t *testing.T) {
	// The attempt that trips the lockout gets a 401 like any other bad
	// password; only subsequent attempts see the 429.
	repo, _ := loginRepo(t, "Sup3rSecret!")
	lockout := &mockLockout{
		recordFailureFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
	}
	svc := newTestService(repo, lockout)

	_, err := svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "wrong"})
	assertAppError(t, err, 401)
}

func TestLogin_LockedOutBeforeCredentialCheck(t *testing.T) {
	repoTouched := false
	repo := &mockUserRepo{
		findByIdentifierFn: func(_ context.Context, _ string) (*User, error) {
			repoTouched = true
			return nil, apperror.NewNotFound("user not found")
		},
	}
	lockout := &mockLockout{
		checkLockedFn: func(_ context.Context, _ string) (time.Duration, error) {
			return 17500 * time.Millisecond, nil
		},
	}
	svc := newTestService(repo, lockout)

	_, err := svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "Sup3rSecret!"})
	appErr := assertAppError(t, err, 429)
	if appErr.CooldownSeconds != 18 {
		t.Errorf("expected cooldown rounded up to 18s, got %d", appErr.CooldownSeconds)
	}
	if repoTouched {
		t.Error("credential store must not be touched while locked out")
	}
}

func TestLogin_LockoutStoreFailureDoesNotBlockLogin(t *testing.T) {
	repo, _ := loginRepo(t, "Sup3rSecret!")
	lockout := &mockLockout{
		checkLockedFn: func(_ context.Context, _ string) (time.Duration, error) {
			return 0, errors.New("store down")
		},
	}
	svc := newTestService(repo, lockout)

	if _, err := svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "Sup3rSecret!"}); err != nil {
		t.Fatalf("Login with broken lockout store: %v", err)
	}
}

func TestLogin_EmptyCredentials(t *testing.T) {
	svc := newTestService(nil, nil)

	_, err := svc.Login(context.Background(), LoginInput{})
	assertAppError(t, err, 401)
}

// --- Refresh ---

func TestRefresh_MintsNewAccessToken(t *testing.T) {
	repo, user := loginRepo(t, "Sup3rSecret!")
	tokens := testTokenManager()
	svc := NewAuthService(repo, tokens, &mockLockout{})

	refresh, err := tokens.MintRefresh(user.ID)
	if err != nil {
		t.Fatalf("minting refresh token: %v", err)
	}

	result, err := svc.Refresh(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.User.ID != user.ID {
		t.Errorf("expected user %q, got %q", user.ID, result.User.ID)
	}
	if gotID, err := tokens.VerifyAccess(result.AccessToken); err != nil || gotID != user.ID {
		t.Errorf("minted access token does not verify for the user: %v", err)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	repo, user := loginRepo(t, "Sup3rSecret!")
	tokens := testTokenManager()
	svc := NewAuthService(repo, tokens, &mockLockout{})

	access, err := tokens.MintAccess(user.ID)
	if err != nil {
		t.Fatalf("minting access token: %v", err)
	}

	_, err = svc.Refresh(context.Background(), access)
	assertAppError(t, err, 401)
}

func TestRefresh_RejectsGarbage(t *testing.T) {
	svc := newTestService(nil, nil)

	_, err := svc.Refresh(context.Background(), "not.a.token")
	assertAppError(t, err, 401)
}

func TestRefresh_DeletedUser(t *testing.T) {
	tokens := testTokenManager()
	svc := NewAuthService(&mockUserRepo{}, tokens, &mockLockout{})

	refresh, err := tokens.MintRefresh("gone-user")
	if err != nil {
		t.Fatalf("minting refresh token: %v", err)
	}

	_, err = svc.Refresh(context.Background(), refresh)
	assertAppError(t, err, 401)
}

// --- Authenticate ---

func TestAuthenticate_ValidAccessToken(t *testing.T) {
	repo, user := loginRepo(t, "Sup3rSecret!")
	tokens := testTokenManager()
	svc := NewAuthService(repo, tokens, &mockLockout{})

	access, err := tokens.MintAccess(user.ID)
	if err != nil {
		t.Fatalf("minting access token: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), access)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %q, got %q", user.ID, got.ID)
	}
}

func TestAuthenticate_RejectsRefreshToken(t *testing.T) {
	repo, user := loginRepo(t, "Sup3rSecret!")
	tokens := testTokenManager()
	svc := NewAuthService(repo, tokens, &mockLockout{})

	refresh, err := tokens.MintRefresh(user.ID)
	if err != nil {
		t.Fatalf("minting refresh token: %v", err)
	}

	_, err = svc.Authenticate(context.Background(), refresh)
	assertAppError(t, err, 401)
}

// --- Availability checks ---

func TestUsernameAvailable(t *testing.T) {
	repo := &mockUserRepo{
		usernameExistsFn: func(_ context.Context, username string) (bool, error) {
			return username == "alice", nil
		},
	}
	svc := newTestService(repo, nil)

	if available, _ := svc.UsernameAvailable(context.Background(), "Alice"); available {
		t.Error("expected taken username to be unavailable, case-insensitively")
	}
	if available, _ := svc.UsernameAvailable(context.Background(), "bob"); !available {
		t.Error("expected free username to be available")
	}
}

// --- End-to-end lockout flow against the real in-memory store ---

func TestLogin_LockoutLifecycle(t *testing.T) {
	repo, _ := loginRepo(t, "Sup3rSecret!")
	store, now := newClockedStore()
	svc := NewAuthService(repo, testTokenManager(), store)
	ctx := context.Background()

	// Three wrong passwords in a row.
	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, LoginInput{Identifier: "alice", Password: "wrong"})
		assertAppError(t, err, 401)
	}

	// Within the lockout window even the correct password is throttled.
	_, err := svc.Login(ctx, LoginInput{Identifier: "alice", Password: "Sup3rSecret!"})
	appErr := assertAppError(t, err, 429)
	if appErr.CooldownSeconds <= 0 {
		t.Errorf("expected a positive cooldown, got %d", appErr.CooldownSeconds)
	}

	// Once the window passes, the correct login goes through and resets
	// the counter.
	*now = now.Add(31 * time.Second)
	if _, err := svc.Login(ctx, LoginInput{Identifier: "alice", Password: "Sup3rSecret!"}); err != nil {
		t.Fatalf("login after lockout expiry: %v", err)
	}

	// A single failure afterwards must not lock immediately.
	_, err = svc.Login(ctx, LoginInput{Identifier: "alice", Password: "wrong"})
	assertAppError(t, err, 401)
	if remaining, _ := store.CheckLocked(ctx, "alice"); remaining != 0 {
		t.Errorf("expected no lockout after a single post-reset failure, got %v", remaining)
	}
}
