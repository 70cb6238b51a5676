// Package repository declares the storage boundary of the blog.
//
// These interfaces are the "document store, object store and auth backend"
// the services talk to. The services only ever see these interfaces; the
// sqlite package implements all of them, and tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/travel-blog/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// SearchField names the post column a text query is matched against.
type SearchField string

const (
	SearchTitle   SearchField = "title"
	SearchContent SearchField = "content"
)

// PostFilter narrows a post listing. Zero values mean "no constraint",
// except Status, which the service defaults to active before calling List.
type PostFilter struct {
	Status   model.Status
	Category model.Category
	UserID   string

	// Field and Term together add a case-insensitive "contains" match.
	Field SearchField
	Term  string

	Sort model.Sort
	ListOptions
}

// LikeFunc receives the current liker list of a post and returns the new one.
type LikeFunc func(likedBy []string) []string

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context, filter PostFilter) ([]model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id string) error

	// ModifyLikes applies fn to the post's liker list and stores the result,
	// with LikeCount recomputed as the list length, as one unit.
	ModifyLikes(ctx context.Context, id string, fn LikeFunc) (*model.Post, error)

	// IncrementViews adds one to the view counter and returns the new value.
	IncrementViews(ctx context.Context, id string) (int, error)
}

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.Account, error)
	LinkGitHub(ctx context.Context, id string, githubID int64) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type ProfileRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	// FindByUserID matches the userId field instead of the document id.
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

// StatsRepository stores named counters in well-known documents.
type StatsRepository interface {
	Get(ctx context.Context, id string) (int, error)
	Increment(ctx context.Context, id string) (int, error)
}

// FileStore is the object store (one bucket per store).
type FileStore interface {
	Create(ctx context.Context, file *model.File) error
	// Get returns the file including its Data.
	Get(ctx context.Context, id string) (*model.File, error)
	// List returns file metadata (without Data) for the whole bucket.
	List(ctx context.Context) ([]model.File, error)
	SetPublic(ctx context.Context, id string, public bool) error
	Delete(ctx context.Context, id string) error
}
