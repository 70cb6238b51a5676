package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/model"
	"github.com/sakif/travel-blog/internal/repository"
)

var (
	_ repository.AccountRepository = (*AccountDB)(nil)
	_ repository.SessionRepository = (*SessionDB)(nil)
	_ repository.ProfileRepository = (*ProfileDB)(nil)
)

// AccountDB stores authentication records.
type AccountDB struct {
	conn *sql.DB
}

const accountColumns = `id, email, name, password_hash, github_id, created_at, updated_at`

func scanAccount(row scanner) (*model.Account, error) {
	var (
		a        model.Account
		githubID sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &githubID,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.GitHubID = githubID.Int64
	return &a, nil
}

// nullableGitHubID stores 0 as NULL so the UNIQUE constraint only applies to
// linked accounts.
func nullableGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// Create inserts a new account with a fresh xid. A duplicate email (or
// GitHub id) is reported as apperror.ErrConflict.
func (db *AccountDB) Create(ctx context.Context, account *model.Account) error {
	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Email, account.Name, account.PasswordHash,
		nullableGitHubID(account.GitHubID), account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return apperror.Conflict("account", account.Email)
		}
		return fmt.Errorf("sqlite: inserting account (email=%s): %w", account.Email, err)
	}
	return nil
}

func (db *AccountDB) getBy(ctx context.Context, column string, value any, label string) (*model.Account, error) {
	a, err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+column+` = ?`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", label)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", label, err)
	}
	return a, nil
}

// GetByID retrieves an account by its internal ID.
func (db *AccountDB) GetByID(ctx context.Context, id string) (*model.Account, error) {
	return db.getBy(ctx, "id", id, id)
}

// GetByEmail retrieves an account by email. Callers pass the normalized
// (lower-cased) address.
func (db *AccountDB) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return db.getBy(ctx, "email", email, email)
}

// GetByGitHubID retrieves the account linked to a GitHub user.
func (db *AccountDB) GetByGitHubID(ctx context.Context, githubID int64) (*model.Account, error) {
	return db.getBy(ctx, "github_id", githubID, fmt.Sprintf("github:%d", githubID))
}

// LinkGitHub attaches a GitHub identity to an existing account.
func (db *AccountDB) LinkGitHub(ctx context.Context, id string, githubID int64) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET github_id = ?, updated_at = ? WHERE id = ?`,
		nullableGitHubID(githubID), time.Now().UTC(), id,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return apperror.Conflict("account", fmt.Sprintf("github:%d", githubID))
		}
		return fmt.Errorf("sqlite: linking github to account %s: %w", id, err)
	}
	found, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NotFound("account", id)
	}
	return nil
}

// Delete removes an account. Its sessions go with it (ON DELETE CASCADE).
func (db *AccountDB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting account %s: %w", id, err)
	}
	found, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NotFound("account", id)
	}
	return nil
}

// Count returns the number of registered accounts.
func (db *AccountDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting accounts: %w", err)
	}
	return n, nil
}

// SessionDB stores login sessions.
type SessionDB struct {
	conn *sql.DB
}

// Create inserts a session with a fresh xid. The caller sets UserID and
// ExpiresAt.
func (db *SessionDB) Create(ctx context.Context, session *model.Session) error {
	session.ID = xid.New().String()
	session.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session for user %s: %w", session.UserID, err)
	}
	return nil
}

// GetByID retrieves a session. Expiry is checked by the caller.
func (db *SessionDB) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session %s: %w", id, err)
	}
	return &s, nil
}

// DeleteByUser removes every session of a user. Deleting zero rows is not
// an error: logging out twice is harmless.
func (db *SessionDB) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: deleting sessions of user %s: %w", userID, err)
	}
	return nil
}

// ProfileDB stores public user profiles.
type ProfileDB struct {
	conn *sql.DB
}

const profileColumns = `id, user_id, name, email, created_at, updated_at`

func scanProfile(row scanner) (*model.Profile, error) {
	var p model.Profile
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a profile. An empty ID defaults to the user id, which is
// what makes the by-id lookup the cheap path.
func (db *ProfileDB) Create(ctx context.Context, profile *model.Profile) error {
	if profile.ID == "" {
		profile.ID = profile.UserID
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		profile.ID, profile.UserID, profile.Name, profile.Email, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return apperror.Conflict("profile", profile.ID)
		}
		return fmt.Errorf("sqlite: creating profile for user %s: %w", profile.UserID, err)
	}
	return nil
}

// GetByID retrieves a profile by document id.
func (db *ProfileDB) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	p, err := scanProfile(db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", id)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", id, err)
	}
	return p, nil
}

// FindByUserID returns the oldest profile whose user_id matches.
func (db *ProfileDB) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := scanProfile(db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?
		 ORDER BY created_at ASC LIMIT 1`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("sqlite: finding profile of user %s: %w", userID, err)
	}
	return p, nil
}
