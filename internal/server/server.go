// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: it opens the database, builds the services
// and handlers, and decides which middleware runs on which routes. main.go
// only loads config and calls New and Start.
//
// DEPENDENCY FLOW:
//
//	config → sqlite.DB → per-entity repositories
//	       → ContentService, AuthService, Generator
//	       → handlers → chi routes
//
// Handlers never touch the database. Services never touch HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/travel-blog/internal/auth"
	"github.com/sakif/travel-blog/internal/config"
	"github.com/sakif/travel-blog/internal/generator"
	"github.com/sakif/travel-blog/internal/handler"
	"github.com/sakif/travel-blog/internal/middleware"
	sqliteRepo "github.com/sakif/travel-blog/internal/repository/sqlite"
	"github.com/sakif/travel-blog/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection. It is closed when Start returns
// so pending WAL writes are flushed and the file lock is released.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and wires every route.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on the way out.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP     so later middleware sees the ID and client IP
//  2. Recoverer             a panic becomes a 500, not a dead process
//  3. Logger, Metrics       one log line and one sample per request
//  4. CORS                  the SPA runs on another origin in development
//  5. httprate              per-IP request budget
//
// Routes that need a login are only registered when auth.jwt_secret is set.
// Without it the blog is read-only.
func (s *Server) setupRoutes() error {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.cfg.Server.RateLimit, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// === Services ===
	content := service.NewContentService(s.db.Posts(), s.db.Files(s.cfg.Content.Bucket), s.logger)
	gen := generator.New(s.cfg.Generator, s.logger)

	authSvc, err := s.newAuthService()
	if err != nil {
		return err
	}

	// === Handlers ===
	posts := handler.NewPostHandler(content, s.logger)
	files := handler.NewFileHandler(content, s.cfg.Content.MaxUploadBytes, s.logger)
	generate := handler.NewGenerateHandler(gen, s.logger)

	// The user directory falls back to placeholders, so it works without
	// auth as long as the repositories are there.
	users := handler.NewUserHandler(s.userDirectory(authSvc), s.logger)

	var authH *handler.AuthHandler
	if authSvc != nil {
		var github handler.GitHubExchanger
		if s.cfg.GitHub.Enabled() {
			github = auth.NewGitHubProvider(s.cfg.GitHub.ClientID, s.cfg.GitHub.ClientSecret, s.cfg.GitHub.CallbackURL)
		}
		authH = handler.NewAuthHandler(authSvc, github, s.cfg.Auth.CookieSecure, s.logger)
	} else {
		s.logger.Warn("auth.jwt_secret not set: login and every write route are disabled")
	}

	// === Public routes ===
	r.Get("/files/{id}/view", files.HandleView)

	r.Route("/api", func(r chi.Router) {
		r.Get("/users/{id}/profile", users.HandleProfile)
		r.Get("/stats/users", users.HandleTotalUsers)

		r.Get("/posts/search", posts.HandleSearch)
		r.Post("/posts/{slug}/views", posts.HandleView)

		if authH == nil {
			r.Get("/posts", posts.HandleList)
			r.Get("/posts/{slug}", posts.HandleGet)
			return
		}

		// Anonymous callers see published posts; a logged-in author may
		// also read and list their drafts.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(authSvc))
			r.Get("/posts", posts.HandleList)
			r.Get("/posts/{slug}", posts.HandleGet)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authH.HandleSignup)
			r.Post("/login", authH.HandleLogin)
			r.Get("/me", authH.HandleMe)
			r.With(auth.RequireAuth(authSvc)).Post("/logout", authH.HandleLogout)
		})

		// === Authenticated routes ===
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(authSvc))

			r.Post("/posts", posts.HandleCreate)
			r.Put("/posts/{slug}", posts.HandleUpdate)
			r.Delete("/posts/{slug}", posts.HandleDelete)
			r.Get("/posts/{slug}/like", posts.HandleLikeStatus)
			r.Post("/posts/{slug}/like", posts.HandleToggleLike)

			r.Post("/files", files.HandleUpload)
			r.Delete("/files/{id}", files.HandleDelete)
			r.Post("/uploads/image", files.HandleUploadImage)

			r.Post("/generate", generate.HandleGenerate)
		})
	})

	if authH == nil {
		return nil
	}

	r.With(auth.RequireAuth(authSvc)).Get("/files/{id}/download", files.HandleDownload)
	r.Get("/auth/github/login", authH.HandleGitHubLogin)
	r.Get("/auth/github/callback", authH.HandleGitHubCallback)

	return nil
}

// newAuthService returns nil when no JWT secret is configured.
func (s *Server) newAuthService() (*service.AuthService, error) {
	if s.cfg.Auth.JWTSecret == "" {
		return nil, nil
	}
	tokens, err := auth.NewTokenService(s.cfg.Auth.JWTSecret,
		auth.WithIssuer(s.cfg.Auth.Issuer),
		auth.WithTTL(s.cfg.Auth.SessionTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	return s.buildAuthService(tokens), nil
}

func (s *Server) buildAuthService(tokens *auth.TokenService) *service.AuthService {
	return service.NewAuthService(
		s.db.Accounts(),
		s.db.Profiles(),
		s.db.Sessions(),
		s.db.Stats(),
		tokens,
		auth.NewPasswordService(),
		s.cfg.Content.DemoUserCount,
		s.logger,
	)
}

// userDirectory returns authSvc, or a token-less AuthService that only
// serves the read-only profile and counter lookups.
func (s *Server) userDirectory(authSvc *service.AuthService) handler.UserService {
	if authSvc != nil {
		return authSvc
	}
	return s.buildAuthService(nil)
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully:
//  1. stop accepting connections
//  2. wait up to server.shutdown_timeout for in-flight requests
//  3. close the database
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Generation calls can take most of a minute.
		WriteTimeout: s.cfg.Generator.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Server.Port),
			slog.String("database", s.cfg.Database.Path),
			slog.Bool("auth", s.cfg.Auth.JWTSecret != ""),
			slog.Bool("github", s.cfg.GitHub.Enabled()),
			slog.Bool("generator", s.cfg.Generator.APIKey != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
