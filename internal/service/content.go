// Package service contains the business logic of the blog.
//
// Handlers parse HTTP and call a service. A service validates input, then
// orchestrates one or more repository calls and does the small amount of
// post-processing the blog needs (splitting long content into a preview and
// an overflow file, merging search results, falling back to placeholders).
// Services never see HTTP types, so the admin CLI calls the same methods the
// API does.
//
// Services receive repository interfaces, not *sqlite.DB. Tests pass the
// in-memory fakes from fakes_test.go.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/htmltext"
	"github.com/sakif/travel-blog/internal/metrics"
	"github.com/sakif/travel-blog/internal/model"
	"github.com/sakif/travel-blog/internal/repository"
	"github.com/sakif/travel-blog/internal/validation"
)

// CONTENT OVERFLOW:
// A post body longer than InlineContentLimit runes is stored as an HTML file
// in the object store. The post row keeps the first previewRunes runes plus
// "..." so listings can render a teaser without fetching the file.
const (
	InlineContentLimit = 400
	previewRunes       = InlineContentLimit - len(previewSuffix)
	previewSuffix      = "..."

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// PostInput carries the author-editable fields of a post.
type PostInput struct {
	Slug          string         `json:"id" validate:"slug"`
	Title         string         `json:"title" validate:"required,max=255"`
	Content       string         `json:"content"`
	FeaturedImage string         `json:"featuredImage"`
	Status        model.Status   `json:"status" validate:"omitempty,status"`
	Category      model.Category `json:"category" validate:"omitempty,category"`
	UserID        string         `json:"userId" validate:"required"`
}

func (in *PostInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	if in.Status == "" {
		in.Status = model.StatusActive
	}
	if in.Category == "" {
		in.Category = model.CategoryDestination
	}
}

// ContentService manages posts, likes, views and the file bucket.
type ContentService struct {
	posts  repository.PostRepository
	files  repository.FileStore
	logger *slog.Logger
}

// NewContentService creates a ContentService.
func NewContentService(posts repository.PostRepository, files repository.FileStore, logger *slog.Logger) *ContentService {
	return &ContentService{
		posts:  posts,
		files:  files,
		logger: logger,
	}
}

// splitContent returns what the post row stores and whether the full text
// needs an overflow file.
func splitContent(content string) (stored string, overflow bool) {
	runes := []rune(content)
	if len(runes) <= InlineContentLimit {
		return content, false
	}
	return string(runes[:previewRunes]) + previewSuffix, true
}

// CreatePost validates in and stores a new post under in.Slug.
//
// Validation runs before any storage call. A taken slug is reported as
// apperror.ErrConflict; if the row cannot be written after the overflow file
// was uploaded, the file is removed again.
func (s *ContentService) CreatePost(ctx context.Context, in PostInput) (post *model.Post, err error) {
	defer func() { metrics.RecordPostOperation("create", err) }()

	in.normalize()
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	post = &model.Post{
		ID:            in.Slug,
		Title:         in.Title,
		FeaturedImage: in.FeaturedImage,
		Status:        in.Status,
		UserID:        in.UserID,
		Category:      in.Category,
		LikedBy:       []string{},
		ReadTime:      htmltext.ReadTime(in.Content),
	}

	stored, overflow := splitContent(in.Content)
	post.Content = stored
	if overflow {
		f, err := s.storeOverflow(ctx, in.UserID, in.Slug, in.Content)
		if err != nil {
			return nil, err
		}
		post.ContentID = f.ID
	}

	if err := s.posts.Create(ctx, post); err != nil {
		if post.ContentID != "" {
			s.deleteQuietly(ctx, post.ContentID, "orphaned overflow")
		}
		if apperror.Kind(err) == nil {
			s.logger.Error("failed to create post",
				slog.String("slug", in.Slug),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("slug", post.ID),
		slog.String("userID", post.UserID),
		slog.Bool("overflow", overflow),
	)
	return post, nil
}

// UpdatePost replaces the editable fields of post id. The author and the
// slug never change. An empty FeaturedImage keeps the current image.
//
// The overflow file is re-derived on every update: a new one is written when
// the content is long, and any previous one is removed afterwards. Removing
// old files is best-effort; a failure leaves an orphan, never a broken post.
func (s *ContentService) UpdatePost(ctx context.Context, id string, in PostInput) (_ *model.Post, err error) {
	defer func() { metrics.RecordPostOperation("update", err) }()

	post, err := s.posts.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}

	in.Slug = post.ID
	in.UserID = post.UserID
	if in.FeaturedImage == "" {
		in.FeaturedImage = post.FeaturedImage
	}
	in.normalize()
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	oldContentID := post.ContentID
	oldImage := post.FeaturedImage

	stored, overflow := splitContent(in.Content)
	post.Content = stored
	post.ContentID = ""
	if overflow {
		f, err := s.storeOverflow(ctx, post.UserID, post.ID, in.Content)
		if err != nil {
			return nil, err
		}
		post.ContentID = f.ID
	}

	post.Title = in.Title
	post.FeaturedImage = in.FeaturedImage
	post.Status = in.Status
	post.Category = in.Category
	post.ReadTime = htmltext.ReadTime(in.Content)

	if err := s.posts.Update(ctx, post); err != nil {
		if post.ContentID != "" {
			s.deleteQuietly(ctx, post.ContentID, "orphaned overflow")
		}
		return nil, fmt.Errorf("updating post: %w", err)
	}

	if oldContentID != "" {
		s.deleteQuietly(ctx, oldContentID, "replaced overflow")
	}
	if oldImage != "" && oldImage != post.FeaturedImage {
		s.releaseImage(ctx, oldImage, post.UserID)
	}

	s.logger.Info("post updated",
		slog.String("slug", post.ID),
		slog.Bool("overflow", overflow),
	)
	return post, nil
}

// DeletePost removes a post together with its overflow file and featured
// image. File removal is best-effort; the row deletion is not.
func (s *ContentService) DeletePost(ctx context.Context, id string) (err error) {
	defer func() { metrics.RecordPostOperation("delete", err) }()

	post, err := s.posts.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}

	if post.ContentID != "" {
		s.deleteQuietly(ctx, post.ContentID, "overflow")
	}
	if post.FeaturedImage != "" {
		s.releaseImage(ctx, post.FeaturedImage, post.UserID)
	}

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}

	s.logger.Info("post deleted", slog.String("slug", post.ID))
	return nil
}

// GetPost returns a post with its full content. When the content lives in an
// overflow file it is read through the public view first and the
// authenticated download second; if both fail the preview is returned.
func (s *ContentService) GetPost(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if post.ContentID == "" {
		return post, nil
	}

	contentID := post.ContentID
	post.Content = firstOf(ctx, s.logger, "post content "+post.ID, []strategy[string]{
		{name: "public view", fetch: func(ctx context.Context) (string, error) {
			f, err := s.ViewFile(ctx, contentID)
			if err != nil {
				return "", err
			}
			return string(f.Data), nil
		}},
		{name: "download", fetch: func(ctx context.Context) (string, error) {
			f, err := s.DownloadFile(ctx, contentID)
			if err != nil {
				return "", err
			}
			return string(f.Data), nil
		}},
	}, post.Content)

	return post, nil
}

// GetPosts lists posts. Status defaults to active; the zero Sort is newest
// first. Text search fields in filter are ignored, use SearchPosts.
func (s *ContentService) GetPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	filter.Field, filter.Term = "", ""
	filter, err := s.prepareFilter(filter)
	if err != nil {
		return nil, err
	}

	posts, err := s.posts.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

func (s *ContentService) prepareFilter(filter repository.PostFilter) (repository.PostFilter, error) {
	if filter.Status == "" {
		filter.Status = model.StatusActive
	}
	if !filter.Status.Valid() {
		return filter, apperror.ValidationFailed("status", "status must be active or inactive")
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return filter, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", filter.Category))
	}
	if !filter.Sort.Valid() {
		return filter, apperror.ValidationFailed("sort", fmt.Sprintf("unknown sort %q", filter.Sort))
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter, nil
}

// LikeResult reports the state of a post's likes after a toggle.
type LikeResult struct {
	Liked     bool     `json:"liked"`
	LikeCount int      `json:"likeCount"`
	LikedBy   []string `json:"likedBy"`
}

// ToggleLike adds userID to the post's likers, or removes it if present.
// The read and the write happen as one repository operation, so two users
// liking at once both count.
func (s *ContentService) ToggleLike(ctx context.Context, postID, userID string) (*LikeResult, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required to like a post")
	}

	var liked bool
	post, err := s.posts.ModifyLikes(ctx, postID, func(likedBy []string) []string {
		next := make([]string, 0, len(likedBy)+1)
		for _, id := range likedBy {
			if id != userID {
				next = append(next, id)
			}
		}
		liked = len(next) == len(likedBy)
		if liked {
			next = append(next, userID)
		}
		return next
	})
	metrics.RecordPostOperation("like", err)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("like toggled",
		slog.String("slug", postID),
		slog.String("userID", userID),
		slog.Bool("liked", liked),
	)
	return &LikeResult{Liked: liked, LikeCount: post.LikeCount, LikedBy: post.LikedBy}, nil
}

// HasUserLiked reports whether userID is among the post's likers.
func (s *ContentService) HasUserLiked(ctx context.Context, postID, userID string) (bool, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return false, err
	}
	return post.HasLiker(userID), nil
}

// IncrementPostViews adds one view and returns the new count.
func (s *ContentService) IncrementPostViews(ctx context.Context, postID string) (int, error) {
	views, err := s.posts.IncrementViews(ctx, postID)
	metrics.RecordPostOperation("view", err)
	return views, err
}

// IsAuthor returns apperror.ErrForbidden unless userID wrote the post.
func (s *ContentService) IsAuthor(ctx context.Context, postID, userID string) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if userID == "" || post.UserID != userID {
		return apperror.Forbidden("only the author can change this post")
	}
	return nil
}
