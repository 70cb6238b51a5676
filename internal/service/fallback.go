package service

import (
	"context"
	"log/slog"
)

// strategy is one way of obtaining a value for a read that must not fail.
type strategy[T any] struct {
	name  string
	fetch func(ctx context.Context) (T, error)
}

// firstOf runs strategies in order and returns the first success. When all
// of them fail it returns last, which every caller picks so that it cannot
// fail. Each failure is logged at debug level: falling through is expected
// (a missing profile, an unreadable counter) and not an incident.
func firstOf[T any](ctx context.Context, logger *slog.Logger, what string, strategies []strategy[T], last T) T {
	for _, s := range strategies {
		if ctx.Err() != nil {
			break
		}
		v, err := s.fetch(ctx)
		if err == nil {
			return v
		}
		logger.Debug("fallback strategy failed",
			slog.String("for", what),
			slog.String("strategy", s.name),
			slog.String("error", err.Error()),
		)
	}
	return last
}
