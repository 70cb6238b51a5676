package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/auth"
	"github.com/sakif/travel-blog/internal/model"
)

const testDemoUsers = 2438

type authFixture struct {
	svc      *AuthService
	accounts *fakeAccountRepo
	profiles *fakeProfileRepo
	sessions *fakeSessionRepo
	stats    *fakeStatsRepo
	tokens   *auth.TokenService
}

// newTestAuthService returns an AuthService wired with fakes. bcrypt runs at
// its minimum cost so the tests stay fast.
func newTestAuthService(t *testing.T) *authFixture {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", auth.WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	f := &authFixture{
		accounts: newFakeAccountRepo(),
		profiles: newFakeProfileRepo(),
		sessions: newFakeSessionRepo(),
		stats:    newFakeStatsRepo(),
		tokens:   ts,
	}
	f.svc = NewAuthService(f.accounts, f.profiles, f.sessions, f.stats, ts,
		auth.NewPasswordServiceForTest(4), testDemoUsers, discardLogger())
	return f
}

// =========================================================================
// CreateAccount
// =========================================================================

func TestCreateAccount(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	res, err := f.svc.CreateAccount(ctx, "  Amy@Example.com ", "correct-horse", "Amy Pond")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if res.Account.Email != "amy@example.com" {
		t.Errorf("Email = %q, want lower-cased", res.Account.Email)
	}
	if res.Token == "" {
		t.Fatal("CreateAccount() returned no token")
	}

	profile := f.svc.GetUserProfile(ctx, res.Account.ID)
	if profile.ID != res.Account.ID || profile.Name != "Amy Pond" {
		t.Errorf("profile = %+v, want id and name of the account", profile)
	}
	if got := f.svc.GetTotalUsers(ctx); got != 1 {
		t.Errorf("GetTotalUsers() = %d, want 1", got)
	}

	userID, err := f.svc.Authenticate(ctx, res.Token)
	if err != nil || userID != res.Account.ID {
		t.Errorf("Authenticate(new token) = %q, %v", userID, err)
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name, email, password, display, field string
	}{
		{"bad email", "not-an-email", "password1", "Amy", "email"},
		{"short password", "a@b.co", "short", "Amy", "password"},
		{"long password", "a@b.co", string(make([]byte, 73)), "Amy", "password"},
		{"short name", "a@b.co", "password1", "A", "name"},
		{"missing name", "a@b.co", "password1", "  ", "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestAuthService(t)
			_, err := f.svc.CreateAccount(context.Background(), tt.email, tt.password, tt.display)

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("CreateAccount() error = %v, want validation error", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
			if len(f.accounts.accounts) != 0 {
				t.Error("account stored despite invalid input")
			}
		})
	}
}

func TestCreateAccount_DuplicateEmailHasNoSideEffects(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	if _, err := f.svc.CreateAccount(ctx, "amy@example.com", "password1", "Amy"); err != nil {
		t.Fatalf("first CreateAccount() error = %v", err)
	}
	profileCalls := f.profiles.calls

	_, err := f.svc.CreateAccount(ctx, "AMY@example.com", "password2", "Other Amy")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("duplicate CreateAccount() error = %v, want ErrConflict", err)
	}
	if f.profiles.calls != profileCalls {
		t.Error("profile written for a rejected account")
	}
	if f.stats.counters[UsersCounter] != 1 {
		t.Errorf("users counter = %d, want 1", f.stats.counters[UsersCounter])
	}
}

func TestCreateAccount_ProfileFailureRollsBack(t *testing.T) {
	f := newTestAuthService(t)
	f.profiles.createErr = errors.New("profiles collection unavailable")

	if _, err := f.svc.CreateAccount(context.Background(), "rory@example.com", "password1", "Rory"); err == nil {
		t.Fatal("CreateAccount() should fail when the profile cannot be written")
	}
	if len(f.accounts.accounts) != 0 {
		t.Error("account left behind after profile failure")
	}
	if len(f.accounts.deleted) != 1 {
		t.Errorf("account deletes = %d, want 1", len(f.accounts.deleted))
	}
	if f.stats.counters[UsersCounter] != 0 {
		t.Error("counter bumped for a failed registration")
	}
}

func TestCreateAccount_CounterFailureIsSwallowed(t *testing.T) {
	f := newTestAuthService(t)
	f.stats.incrementErr = errors.New("stats offline")

	res, err := f.svc.CreateAccount(context.Background(), "clara@example.com", "password1", "Clara")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v, want nil", err)
	}
	if res.Token == "" {
		t.Error("no token issued")
	}
}

// =========================================================================
// Login / Logout / Authenticate
// =========================================================================

func TestLogin(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created, err := f.svc.CreateAccount(ctx, "amy@example.com", "password1", "Amy")
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Login(ctx, "AMY@example.com", "password1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Account.ID != created.Account.ID {
		t.Errorf("Login() account = %q, want %q", res.Account.ID, created.Account.ID)
	}

	for _, tc := range []struct{ email, password string }{
		{"amy@example.com", "wrong-password"},
		{"nobody@example.com", "password1"},
	} {
		if _, err := f.svc.Login(ctx, tc.email, tc.password); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("Login(%s) error = %v, want ErrUnauthorized", tc.email, err)
		}
	}
}

func TestLogin_GitHubOnlyAccountHasNoPassword(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	if _, err := f.svc.LoginWithGitHub(ctx, &auth.GitHubUser{ID: 5, Login: "gh", Email: "gh@example.com"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Login(ctx, "gh@example.com", ""); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login() error = %v, want ErrUnauthorized", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	first, _ := f.svc.CreateAccount(ctx, "amy@example.com", "password1", "Amy")
	second, _ := f.svc.Login(ctx, "amy@example.com", "password1")

	if err := f.svc.Logout(ctx, first.Account.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	for _, token := range []string{first.Token, second.Token} {
		if _, err := f.svc.Authenticate(ctx, token); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("Authenticate() after logout error = %v, want ErrUnauthorized", err)
		}
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	res, _ := f.svc.CreateAccount(ctx, "amy@example.com", "password1", "Amy")

	t.Run("garbage", func(t *testing.T) {
		if _, err := f.svc.Authenticate(ctx, "not.a.jwt"); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("error = %v, want ErrUnauthorized", err)
		}
	})
	t.Run("empty", func(t *testing.T) {
		if _, err := f.svc.Authenticate(ctx, ""); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("error = %v, want ErrUnauthorized", err)
		}
	})
	t.Run("unknown session", func(t *testing.T) {
		token, err := f.tokens.Issue(res.Account.ID, "session-999", time.Now().Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.svc.Authenticate(ctx, token); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("error = %v, want ErrUnauthorized", err)
		}
	})
	t.Run("session of another user", func(t *testing.T) {
		claims, err := f.tokens.Validate(res.Token)
		if err != nil {
			t.Fatal(err)
		}
		token, _ := f.tokens.Issue("someone-else", claims.SessionID, time.Now().Add(time.Hour))
		if _, err := f.svc.Authenticate(ctx, token); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("error = %v, want ErrUnauthorized", err)
		}
	})
	t.Run("expired session row", func(t *testing.T) {
		f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { f.svc.now = time.Now }()
		if _, err := f.svc.Authenticate(ctx, res.Token); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("error = %v, want ErrUnauthorized", err)
		}
	})
}

func TestGetCurrentUser(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	res, _ := f.svc.CreateAccount(ctx, "amy@example.com", "password1", "Amy")

	user, err := f.svc.GetCurrentUser(ctx, res.Token)
	if err != nil || user == nil || user.ID != res.Account.ID {
		t.Fatalf("GetCurrentUser(valid) = %+v, %v", user, err)
	}

	user, err = f.svc.GetCurrentUser(ctx, "garbage")
	if err != nil || user != nil {
		t.Errorf("GetCurrentUser(invalid) = %+v, %v; want nil, nil", user, err)
	}

	_ = f.svc.Logout(ctx, res.Account.ID)
	user, err = f.svc.GetCurrentUser(ctx, res.Token)
	if err != nil || user != nil {
		t.Errorf("GetCurrentUser(revoked) = %+v, %v; want nil, nil", user, err)
	}
}

// =========================================================================
// LoginWithGitHub
// =========================================================================

func TestLoginWithGitHub_CreatesThenReuses(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	gh := &auth.GitHubUser{ID: 42, Login: "octocat", Name: "The Octocat", Email: "Octo@GitHub.com"}

	first, err := f.svc.LoginWithGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("LoginWithGitHub() error = %v", err)
	}
	if first.Account.GitHubID != 42 || first.Account.Name != "The Octocat" || first.Account.Email != "octo@github.com" {
		t.Errorf("account = %+v", first.Account)
	}
	if f.svc.GetUserProfile(ctx, first.Account.ID).Name != "The Octocat" {
		t.Error("profile not created for GitHub sign-up")
	}

	second, err := f.svc.LoginWithGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("second LoginWithGitHub() error = %v", err)
	}
	if second.Account.ID != first.Account.ID {
		t.Error("second GitHub login created a new account")
	}
	if got := f.svc.GetTotalUsers(ctx); got != 1 {
		t.Errorf("GetTotalUsers() = %d, want 1", got)
	}
}

func TestLoginWithGitHub_LinksExistingEmail(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	created, _ := f.svc.CreateAccount(ctx, "amy@example.com", "password1", "Amy")

	res, err := f.svc.LoginWithGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "amy", Email: "amy@example.com"})
	if err != nil {
		t.Fatalf("LoginWithGitHub() error = %v", err)
	}
	if res.Account.ID != created.Account.ID || res.Account.GitHubID != 7 {
		t.Errorf("account = %+v, want the existing account linked to 7", res.Account)
	}

	// The password keeps working after linking.
	if _, err := f.svc.Login(ctx, "amy@example.com", "password1"); err != nil {
		t.Errorf("Login() after linking error = %v", err)
	}
}

func TestLoginWithGitHub_Rejects(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	for _, gh := range []*auth.GitHubUser{nil, {ID: 0, Email: "x@example.com"}, {ID: 9, Login: "noemail"}} {
		if _, err := f.svc.LoginWithGitHub(ctx, gh); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("LoginWithGitHub(%+v) error = %v, want ErrUnauthorized", gh, err)
		}
	}
}

// =========================================================================
// Profiles and counters
// =========================================================================

func TestGetUserProfile_Fallbacks(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	// Stored under a different document id: found through the userId field.
	_ = f.profiles.Create(ctx, &model.Profile{ID: "legacy-doc", UserID: "u-legacy", Name: "Legacy"})
	if got := f.svc.GetUserProfile(ctx, "u-legacy"); got.Name != "Legacy" {
		t.Errorf("GetUserProfile(legacy) name = %q, want Legacy", got.Name)
	}

	got := f.svc.GetUserProfile(ctx, "u-missing")
	if got == nil {
		t.Fatal("GetUserProfile() returned nil")
	}
	if got.Name != model.AnonymousName || got.UserID != "u-missing" || got.Email != "" {
		t.Errorf("placeholder = %+v", got)
	}
}

func TestGetTotalUsers_Fallbacks(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	f.stats.counters[UsersCounter] = 17
	if got := f.svc.GetTotalUsers(ctx); got != 17 {
		t.Errorf("counter: GetTotalUsers() = %d, want 17", got)
	}

	f.stats.getErr = errors.New("stats offline")
	_, _ = f.svc.CreateAccount(ctx, "a@example.com", "password1", "Amy")
	if got := f.svc.GetTotalUsers(ctx); got != 1 {
		t.Errorf("account count: GetTotalUsers() = %d, want 1", got)
	}

	f.accounts.countErr = errors.New("accounts offline")
	if got := f.svc.GetTotalUsers(ctx); got != testDemoUsers {
		t.Errorf("demo: GetTotalUsers() = %d, want %d", got, testDemoUsers)
	}
}
