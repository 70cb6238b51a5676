package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/auth"
	"github.com/sakif/travel-blog/internal/model"
	"github.com/sakif/travel-blog/internal/repository"
	"github.com/sakif/travel-blog/internal/service"
)

// PostService is what PostHandler needs from the content service.
type PostService interface {
	CreatePost(ctx context.Context, in service.PostInput) (*model.Post, error)
	UpdatePost(ctx context.Context, id string, in service.PostInput) (*model.Post, error)
	DeletePost(ctx context.Context, id string) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	GetPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error)
	SearchPosts(ctx context.Context, term string, filter repository.PostFilter) ([]model.Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (*service.LikeResult, error)
	HasUserLiked(ctx context.Context, postID, userID string) (bool, error)
	IncrementPostViews(ctx context.Context, postID string) (int, error)
	IsAuthor(ctx context.Context, postID, userID string) error
}

// PostHandler serves the post API. Writes require a logged-in caller and,
// for existing posts, the caller must be the author.
type PostHandler struct {
	svc    PostService
	logger *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(svc PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{svc: svc, logger: logger}
}

// filterFromQuery reads status, category, userId, sort, limit and offset.
// Value checks are left to the service.
func filterFromQuery(r *http.Request) (repository.PostFilter, error) {
	q := r.URL.Query()
	f := repository.PostFilter{
		Status:   model.Status(q.Get("status")),
		Category: model.Category(q.Get("category")),
		UserID:   q.Get("userId"),
		Sort:     model.Sort(q.Get("sort")),
	}
	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

// HandleList lists posts.
//
// HTTP: GET /api/posts?status=&category=&userId=&sort=&limit=&offset=
//
// Inactive posts are drafts: they are only listed for their author, so
// status=inactive requires a login and is narrowed to the caller's posts.
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if filter.Status == model.StatusInactive {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, h.logger, apperror.Unauthorized("log in to see unpublished posts"))
			return
		}
		if filter.UserID != "" && filter.UserID != userID {
			writeError(w, h.logger, apperror.Forbidden("unpublished posts are only visible to their author"))
			return
		}
		filter.UserID = userID
	}

	posts, err := h.svc.GetPosts(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(posts))
}

// HandleSearch finds active posts by title or content.
//
// HTTP: GET /api/posts/search?q=term
func (h *PostHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// Search never shows drafts; GetPosts does the same for a blank term.
	filter.Status = model.StatusActive

	posts, err := h.svc.SearchPosts(r.Context(), r.URL.Query().Get("q"), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(posts))
}

// HandleGet returns one post with its full content. A draft is only returned
// to its author; everyone else gets 404, as if it did not exist.
//
// HTTP: GET /api/posts/{slug}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.GetPost(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if post.Status == model.StatusInactive {
		if userID, _ := auth.UserIDFromContext(r.Context()); userID != post.UserID {
			writeError(w, h.logger, apperror.NotFound("post", post.ID))
			return
		}
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCreate creates a post authored by the caller.
//
// HTTP: POST /api/posts (RequireAuth)
// REQUEST BODY: {"id": "slug", "title": "...", "content": "<p>...</p>",
// "featuredImage": "fileID", "status": "active", "category": "Culinary"}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in.UserID, _ = auth.UserIDFromContext(r.Context())

	post, err := h.svc.CreatePost(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate replaces the editable fields of the caller's post.
//
// HTTP: PUT /api/posts/{slug} (RequireAuth, author only)
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.svc.IsAuthor(r.Context(), slug, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var in service.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.svc.UpdatePost(r.Context(), slug, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes the caller's post.
//
// HTTP: DELETE /api/posts/{slug} (RequireAuth, author only)
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.svc.IsAuthor(r.Context(), slug, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.svc.DeletePost(r.Context(), slug); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLikeStatus reports whether the caller likes the post.
//
// HTTP: GET /api/posts/{slug}/like (RequireAuth)
func (h *PostHandler) HandleLikeStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	liked, err := h.svc.HasUserLiked(r.Context(), r.PathValue("slug"), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// HandleToggleLike likes or unlikes the post for the caller.
//
// HTTP: POST /api/posts/{slug}/like (RequireAuth)
func (h *PostHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	res, err := h.svc.ToggleLike(r.Context(), r.PathValue("slug"), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleView counts one view.
//
// HTTP: POST /api/posts/{slug}/views
func (h *PostHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.IncrementPostViews(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"views": views})
}

// nonNil makes empty listings encode as [] instead of null.
func nonNil(posts []model.Post) []model.Post {
	if posts == nil {
		return []model.Post{}
	}
	return posts
}
