package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/travel-blog/internal/model"
	"github.com/sakif/travel-blog/internal/repository"
)

// SearchPosts finds active posts whose title or content contains term,
// case-insensitively. A blank term behaves exactly like GetPosts.
//
// The title and content queries run concurrently. Results are merged with
// title matches first and each post appears once. There is no ranking beyond
// that; within each group the filter's sort order applies. Offset is ignored
// and Limit applies to each query, so a merged page can hold up to 2*Limit.
func (s *ContentService) SearchPosts(ctx context.Context, term string, filter repository.PostFilter) ([]model.Post, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.GetPosts(ctx, filter)
	}

	filter.Status = model.StatusActive
	filter.Offset = 0
	filter, err := s.prepareFilter(filter)
	if err != nil {
		return nil, err
	}

	var byTitle, byContent []model.Post
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f := filter
		f.Field, f.Term = repository.SearchTitle, term
		posts, err := s.posts.List(gctx, f)
		byTitle = posts
		return err
	})
	g.Go(func() error {
		f := filter
		f.Field, f.Term = repository.SearchContent, term
		posts, err := s.posts.List(gctx, f)
		byContent = posts
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("search failed",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("searching posts: %w", err)
	}

	return mergeByID(byTitle, byContent), nil
}

// mergeByID concatenates lists, keeping the first occurrence of each id.
func mergeByID(lists ...[]model.Post) []model.Post {
	seen := make(map[string]struct{})
	merged := make([]model.Post, 0)
	for _, list := range lists {
		for _, p := range list {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged
}
