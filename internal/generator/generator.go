// Package generator drafts blog posts with a generative text API.
//
// A draft is requested with a fixed prompt, cleaned of markdown the model
// tends to emit anyway, and measured. Drafts over the word cap are thrown
// away and requested again, a bounded number of times.
//
// RESILIENCE:
// Every upstream call waits on a token-bucket limiter (the API has a
// per-minute quota) and runs through a circuit breaker. The breaker only
// counts failures that say something about the upstream: transport errors,
// 5xx and 429. A 404 for one model moves on to the next configured model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/config"
	"github.com/sakif/travel-blog/internal/htmltext"
	"github.com/sakif/travel-blog/internal/metrics"
)

const breakerName = "generator"

// Result is a generated draft.
type Result struct {
	Topic     string `json:"topic"`
	Content   string `json:"content"`
	Model     string `json:"model"`
	WordCount int    `json:"wordCount"`
	Attempts  int    `json:"attempts"`
}

// Generator is safe for concurrent use.
type Generator struct {
	cfg        config.GeneratorConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[string]
	logger     *slog.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithHTTPClient replaces the HTTP client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.httpClient = c }
}

// New creates a Generator. It is disabled when cfg.APIKey is empty.
func New(cfg config.GeneratorConfig, logger *slog.Logger, opts ...Option) *Generator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	g := &Generator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}

	// RequestsPerMinute <= 0 means no client-side limit.
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	g.limiter = rate.NewLimiter(limit, 1)

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	g.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAgainstBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether an API key is configured.
func (g *Generator) Enabled() bool {
	return g.cfg.APIKey != ""
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func countsAgainstBreaker(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.transient()
	}
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// Generate writes a draft about topic.
//
// The draft is regenerated while it exceeds the configured word cap, up to
// MaxAttempts times; after that the call fails with a validation error.
func (g *Generator) Generate(ctx context.Context, topic string) (*Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperror.ValidationFailed("topic", "topic is required")
	}
	if !g.Enabled() {
		return nil, apperror.Unavailable("AI generation is not configured", nil)
	}

	start := time.Now()
	defer func() { metrics.GeneratorDuration.Observe(time.Since(start).Seconds()) }()

	prompt := Prompt(topic, g.cfg.MaxWords)
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		text, model, err := g.draft(ctx, prompt)
		if err != nil {
			return nil, err
		}

		cleaned := Clean(text)
		words := htmltext.WordCount(cleaned)
		if g.cfg.MaxWords <= 0 || words <= g.cfg.MaxWords {
			g.logger.Info("draft generated",
				slog.String("model", model),
				slog.Int("words", words),
				slog.Int("attempt", attempt),
			)
			return &Result{
				Topic:     topic,
				Content:   cleaned,
				Model:     model,
				WordCount: words,
				Attempts:  attempt,
			}, nil
		}

		metrics.GeneratorRegenerations.Inc()
		g.logger.Warn("draft over word cap, regenerating",
			slog.String("model", model),
			slog.Int("words", words),
			slog.Int("max", g.cfg.MaxWords),
			slog.Int("attempt", attempt),
		)
	}

	return nil, apperror.ValidationFailed("content",
		fmt.Sprintf("content too long: could not produce a draft within %d words", g.cfg.MaxWords))
}

// draft asks each configured model in turn and returns the first answer.
// Only "model not found" moves on to the next model; any other failure ends
// the call.
func (g *Generator) draft(ctx context.Context, prompt string) (string, string, error) {
	for _, model := range g.cfg.Models {
		text, err := g.call(ctx, model, prompt)
		if err == nil {
			metrics.RecordGeneratorCall(model, "ok")
			return text, model, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			metrics.RecordGeneratorCall(model, "not_found")
			g.logger.Warn("model unavailable, trying next",
				slog.String("model", model),
				slog.String("error", err.Error()),
			)
			continue
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordGeneratorCall(model, "rejected")
		} else {
			metrics.RecordGeneratorCall(model, "error")
		}
		g.logger.Error("generation failed",
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		return "", model, toAppError(err)
	}
	return "", "", apperror.Unavailable("no configured AI model is available", nil)
}

func (g *Generator) call(ctx context.Context, model, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("generator: waiting for rate limiter: %w", err)
	}
	return g.breaker.Execute(func() (string, error) {
		return g.generateContent(ctx, model, prompt)
	})
}

// toAppError maps an upstream failure to the error kinds the API reports.
func toAppError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.Unavailable("AI generation timed out", err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperror.Unavailable("AI generation is temporarily unavailable, try again later", err)
	}

	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return apperror.ValidationFailed("topic", "the topic was blocked by the AI safety filter, try a different topic")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Reason == "API_KEY_INVALID" || apiErr.StatusCode == http.StatusUnauthorized:
			return apperror.Unavailable("AI service rejected the API key", err)
		case apiErr.StatusCode == http.StatusForbidden:
			return apperror.Unavailable("AI service denied access to the model", err)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return apperror.Unavailable("AI quota exceeded, try again later", err)
		case apiErr.StatusCode >= 500:
			return apperror.Unavailable("AI service is having problems, try again later", err)
		default:
			return apperror.Unavailable("AI service error: "+apiErr.Message, err)
		}
	}
	return apperror.Unavailable("could not reach the AI service", err)
}
