package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/model"
	"github.com/sakif/travel-blog/internal/repository"
)

// compile-time check that *PostDB implements repository.PostRepository
var _ repository.PostRepository = (*PostDB)(nil)

// PostDB stores posts. The liker list is kept inside the row as a JSON array,
// the same shape a document store would give it.
type PostDB struct {
	conn *sql.DB
}

const postColumns = `id, title, content, content_id, featured_image, status, user_id,
	category, like_count, liked_by, views, read_time, created_at, updated_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*model.Post, error) {
	var (
		p       model.Post
		likedBy string
	)
	if err := row.Scan(
		&p.ID, &p.Title, &p.Content, &p.ContentID, &p.FeaturedImage,
		&p.Status, &p.UserID, &p.Category, &p.LikeCount, &likedBy,
		&p.Views, &p.ReadTime, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(likedBy), &p.LikedBy); err != nil {
		return nil, fmt.Errorf("decoding liked_by of post %s: %w", p.ID, err)
	}
	if p.LikedBy == nil {
		p.LikedBy = []string{}
	}
	return &p, nil
}

func encodeLikers(likedBy []string) (string, error) {
	if likedBy == nil {
		likedBy = []string{}
	}
	b, err := json.Marshal(likedBy)
	if err != nil {
		return "", fmt.Errorf("encoding liked_by: %w", err)
	}
	return string(b), nil
}

// Create inserts a new post. The slug is the primary key, so a duplicate
// slug comes back as apperror.ErrConflict.
func (db *PostDB) Create(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.LikeCount = len(post.LikedBy)

	likedBy, err := encodeLikers(post.LikedBy)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.Title, post.Content, post.ContentID, post.FeaturedImage,
		post.Status, post.UserID, post.Category, post.LikeCount, likedBy,
		post.Views, post.ReadTime, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return apperror.Conflict("post", post.ID)
		}
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	if post.LikedBy == nil {
		post.LikedBy = []string{}
	}
	return nil
}

// GetByID retrieves a single post by its slug.
func (db *PostDB) GetByID(ctx context.Context, id string) (*model.Post, error) {
	post, err := scanPost(db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return post, nil
}

// List returns posts matching filter.
//
// Text matching uses LIKE with the user's term escaped, so "%" and "_" in a
// search are matched literally. LIKE is case-insensitive for ASCII in SQLite;
// lowering both sides extends that to the rest of what LOWER understands.
func (db *PostDB) List(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Term != "" {
		var column string
		switch filter.Field {
		case repository.SearchTitle:
			column = "title"
		case repository.SearchContent:
			column = "content"
		default:
			return nil, fmt.Errorf("sqlite: unknown search field %q", filter.Field)
		}
		where = append(where, "LOWER("+column+`) LIKE '%' || LOWER(?) || '%' ESCAPE '\'`)
		args = append(args, escapeLike(filter.Term))
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + orderBy(filter.Sort) + ` LIMIT ? OFFSET ?`

	// Paging bounds are the caller's; a zero limit means no limit.
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// Update writes the editable fields of a post. Counters and likers are not
// touched here: they have their own atomic paths.
func (db *PostDB) Update(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts
		 SET title = ?, content = ?, content_id = ?, featured_image = ?,
		     status = ?, category = ?, read_time = ?, updated_at = ?
		 WHERE id = ?`,
		post.Title, post.Content, post.ContentID, post.FeaturedImage,
		post.Status, post.Category, post.ReadTime, post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", post.ID, err)
	}
	found, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// Delete removes a post by its slug.
func (db *PostDB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	found, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NotFound("post", id)
	}
	return nil
}

// ModifyLikes runs read, fn, write inside one transaction. Because the pool
// has a single connection, no other statement can interleave.
func (db *PostDB) ModifyLikes(ctx context.Context, id string, fn repository.LikeFunc) (*model.Post, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning like transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	post, err := scanPost(tx.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: reading likes of post %s: %w", id, err)
	}

	post.LikedBy = fn(post.LikedBy)
	if post.LikedBy == nil {
		post.LikedBy = []string{}
	}
	post.LikeCount = len(post.LikedBy)

	likedBy, err := encodeLikers(post.LikedBy)
	if err != nil {
		return nil, fmt.Errorf("sqlite: writing likes of post %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET liked_by = ?, like_count = ? WHERE id = ?`,
		likedBy, post.LikeCount, id,
	); err != nil {
		return nil, fmt.Errorf("sqlite: writing likes of post %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing likes of post %s: %w", id, err)
	}
	return post, nil
}

// IncrementViews bumps the view counter in a single statement.
func (db *PostDB) IncrementViews(ctx context.Context, id string) (int, error) {
	var views int
	err := db.conn.QueryRowContext(ctx,
		`UPDATE posts SET views = views + 1 WHERE id = ? RETURNING views`, id,
	).Scan(&views)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("post", id)
		}
		return 0, fmt.Errorf("sqlite: incrementing views of post %s: %w", id, err)
	}
	return views, nil
}

func orderBy(sort model.Sort) string {
	switch sort {
	case model.SortOldest:
		return "created_at ASC, rowid ASC"
	case model.SortPopular:
		return "views DESC, created_at DESC, rowid DESC"
	case model.SortMostLiked:
		return "like_count DESC, created_at DESC, rowid DESC"
	default:
		return "created_at DESC, rowid DESC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
