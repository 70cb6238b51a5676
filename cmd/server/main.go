// Package main is the entry point for the travel blog API server.
//
// main stays minimal: load configuration, build the logger, hand both to
// internal/server. Everything else lives in imported packages.
//
// Configuration comes from defaults, an optional config.yaml and the
// environment (see internal/config). The most common variables:
//
//	PORT=8080
//	DB_PATH=data/blog.db
//	JWT_SECRET=$(openssl rand -hex 32)
//	GITHUB_CLIENT_ID=... GITHUB_CLIENT_SECRET=... GITHUB_CALLBACK_URL=...
//	GEMINI_API_KEY=...
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/travel-blog/internal/config"
	"github.com/sakif/travel-blog/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if cfg.GitHub.Enabled() && cfg.GitHub.CallbackURL == "" {
		logger.Warn("GITHUB_CALLBACK_URL not set, GitHub will use the callback registered with the app")
	}

	// os.MkdirAll is like `mkdir -p`. SQLite creates the file, not the
	// directory.
	if cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
