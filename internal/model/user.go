package model

import "time"

// Account is the authentication record for a registered user.
//
// WHY SEPARATE FROM Profile?
// An account holds credentials and is only readable by its owner. Other
// users (a post page showing the author's name) read the Profile instead,
// which is the authoritative source for display names.
//
// PasswordHash is empty for accounts created through GitHub sign-in; such
// accounts cannot log in with a password. GitHubID is zero unless linked.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"githubId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is the public, per-user document. Its ID equals UserID.
type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AnonymousName is shown for users whose profile cannot be found.
const AnonymousName = "Anonymous User"

// PlaceholderProfile returns the profile used when no document exists for
// userID. It is never persisted.
func PlaceholderProfile(userID string) *Profile {
	return &Profile{
		ID:     userID,
		UserID: userID,
		Name:   AnonymousName,
		Email:  "",
	}
}

// Session is a logged-in credential. Tokens reference a session by ID, so
// deleting the row revokes every token issued for it.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at time now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
