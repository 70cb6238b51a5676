package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/auth"
	"github.com/sakif/travel-blog/internal/model"
	"github.com/sakif/travel-blog/internal/repository"
	"github.com/sakif/travel-blog/internal/validation"
)

// UsersCounter is the stats document holding the registration count.
const UsersCounter = "users"

// AuthService handles sign-up, login, sessions and the public user profile.
//
//	AuthHandler (HTTP) → AuthService → AccountRepository, ProfileRepository,
//	                                   SessionRepository, StatsRepository
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// SESSIONS:
// A token is only as good as its session row. Login creates a session and
// signs a JWT whose "jti" is the session ID; Logout deletes every session of
// the user, so tokens issued earlier stop working immediately even though
// their signature and expiry are still valid.
type AuthService struct {
	accounts  repository.AccountRepository
	profiles  repository.ProfileRepository
	sessions  repository.SessionRepository
	stats     repository.StatsRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger

	// demoUserCount is what GetTotalUsers reports when nothing can be counted.
	demoUserCount int
	now           func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	sessions repository.SessionRepository,
	stats repository.StatsRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	demoUserCount int,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:      accounts,
		profiles:      profiles,
		sessions:      sessions,
		stats:         stats,
		tokens:        tokens,
		passwords:     passwords,
		logger:        logger,
		demoUserCount: demoUserCount,
		now:           time.Now,
	}
}

// AuthResult bundles the account and the issued token so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	Account   *model.Account `json:"user"`
	Token     string         `json:"-"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

type signupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
}

// CreateAccount registers a user with email and password and logs them in.
//
// The account and the profile are two writes with no transaction between
// them. If the profile cannot be written the account is deleted again, on a
// best-effort basis, and the profile error is returned. A taken email stops
// everything before the profile or the counter are touched.
func (s *AuthService) CreateAccount(ctx context.Context, email, password, name string) (*AuthResult, error) {
	in := signupInput{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
		Name:     strings.TrimSpace(name),
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	account := &model.Account{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
	}
	if err := s.register(ctx, account); err != nil {
		return nil, err
	}
	return s.startSession(ctx, account)
}

// register writes account, its profile and bumps the registration counter.
func (s *AuthService) register(ctx context.Context, account *model.Account) error {
	if err := s.accounts.Create(ctx, account); err != nil {
		return fmt.Errorf("service/auth: creating account: %w", err)
	}

	profile := &model.Profile{
		ID:     account.ID,
		UserID: account.ID,
		Name:   account.Name,
		Email:  account.Email,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		if delErr := s.accounts.Delete(ctx, account.ID); delErr != nil {
			s.logger.Error("failed to roll back account after profile failure",
				slog.String("userID", account.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return fmt.Errorf("service/auth: creating profile: %w", err)
	}

	if _, err := s.stats.Increment(ctx, UsersCounter); err != nil {
		s.logger.Warn("failed to bump user counter",
			slog.String("userID", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("account created",
		slog.String("userID", account.ID),
		slog.Bool("github", account.GitHubID != 0),
	)
	return nil
}

// startSession writes a session row and signs a token bound to it.
func (s *AuthService) startSession(ctx context.Context, account *model.Account) (*AuthResult, error) {
	now := s.now().UTC()
	session := &model.Session{
		UserID:    account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.TTL()),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("service/auth: creating session: %w", err)
	}

	token, err := s.tokens.Issue(account.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", account.ID, err)
	}
	return &AuthResult{Account: account, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

var errBadCredentials = apperror.Unauthorized("invalid email or password")

// Login checks email and password and starts a session. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.Burn(password)
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: looking up account: %w", err)
	}

	if err := s.passwords.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login rejected", slog.String("userID", account.ID))
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", account.ID))
	return s.startSession(ctx, account)
}

// LoginWithGitHub signs in a GitHub user. The account is found by GitHub ID,
// then by email (and linked), and otherwise created through the same path as
// CreateAccount, without a password.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.ID == 0 {
		return nil, apperror.Unauthorized("GitHub did not identify the user")
	}
	email := strings.ToLower(strings.TrimSpace(gh.Email))
	if email == "" {
		return nil, apperror.Unauthorized("GitHub account has no verified email")
	}

	account, err := s.accounts.GetByGitHubID(ctx, gh.ID)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		account, err = s.accounts.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if err := s.accounts.LinkGitHub(ctx, account.ID, gh.ID); err != nil {
				return nil, fmt.Errorf("service/auth: linking GitHub account: %w", err)
			}
			account.GitHubID = gh.ID
			s.logger.Info("GitHub account linked",
				slog.String("userID", account.ID),
				slog.String("login", gh.Login),
			)
		case errors.Is(err, apperror.ErrNotFound):
			account = &model.Account{
				Email:    email,
				Name:     gh.DisplayName(),
				GitHubID: gh.ID,
			}
			if err := s.register(ctx, account); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("service/auth: looking up account: %w", err)
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up GitHub account: %w", err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", account.ID),
		slog.String("login", gh.Login),
	)
	return s.startSession(ctx, account)
}

// Logout ends every session of userID.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return apperror.Unauthorized("not logged in")
	}
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("service/auth: deleting sessions: %w", err)
	}
	s.logger.Info("user logged out", slog.String("userID", userID))
	return nil
}

// Authenticate resolves a token to a user ID. The token must verify and its
// session must still exist and be unexpired; anything else is
// apperror.ErrUnauthorized. It satisfies auth.Authenticator.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperror.Unauthorized("not logged in")
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return "", apperror.Unauthorized("session expired")
		}
		return "", apperror.Unauthorized("invalid token")
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Unauthorized("session ended")
		}
		return "", fmt.Errorf("service/auth: loading session: %w", err)
	}
	if session.UserID != claims.UserID || session.Expired(s.now()) {
		return "", apperror.Unauthorized("session ended")
	}
	return claims.UserID, nil
}

// GetCurrentUser returns the account behind token, or (nil, nil) when the
// caller is anonymous for any reason. Only storage failures are errors.
func (s *AuthService) GetCurrentUser(ctx context.Context, token string) (*model.Account, error) {
	userID, err := s.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("service/auth: fetching account %s: %w", userID, err)
	}
	return account, nil
}

// GetAccount returns the account with the given ID.
func (s *AuthService) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	return s.accounts.GetByID(ctx, userID)
}

// GetUserProfile returns the public profile of userID. It never fails: when
// no profile can be found the "Anonymous User" placeholder is returned.
func (s *AuthService) GetUserProfile(ctx context.Context, userID string) *model.Profile {
	return firstOf(ctx, s.logger, "profile "+userID, []strategy[*model.Profile]{
		{name: "by id", fetch: func(ctx context.Context) (*model.Profile, error) {
			return s.profiles.GetByID(ctx, userID)
		}},
		{name: "by userId", fetch: func(ctx context.Context) (*model.Profile, error) {
			return s.profiles.FindByUserID(ctx, userID)
		}},
	}, model.PlaceholderProfile(userID))
}

// GetTotalUsers returns the number of registered users for display. It reads
// the counter, then counts accounts, and finally reports the demo constant.
func (s *AuthService) GetTotalUsers(ctx context.Context) int {
	return firstOf(ctx, s.logger, "total users", []strategy[int]{
		{name: "counter", fetch: func(ctx context.Context) (int, error) {
			return s.stats.Get(ctx, UsersCounter)
		}},
		{name: "account count", fetch: func(ctx context.Context) (int, error) {
			return s.accounts.Count(ctx)
		}},
	}, s.demoUserCount)
}
