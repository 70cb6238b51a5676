// Package config loads the blog's configuration.
//
// LAYERS (later wins):
//  1. Defaults      built into Default()
//  2. Config file   YAML, from $CONFIG_PATH or ./config.yaml when present
//  3. Environment   BLOG_SECTION__KEY (e.g. BLOG_SERVER__PORT=9000), plus the
//     short names older deployments use: PORT, DB_PATH, JWT_SECRET,
//     GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET, GITHUB_CALLBACK_URL,
//     GEMINI_API_KEY.
//
// A .env file in the working directory is read into the environment first,
// without overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the variable that points at a YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

const defaultConfigFile = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	GitHub    GitHubConfig    `koanf:"github"`
	Generator GeneratorConfig `koanf:"generator"`
	Content   ContentConfig   `koanf:"content"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit"` // requests per minute per client IP, 0 disables
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// AuthConfig controls session tokens. An empty JWTSecret disables every
// route that needs a login.
type AuthConfig struct {
	JWTSecret    string        `koanf:"jwt_secret"`
	Issuer       string        `koanf:"issuer"`
	SessionTTL   time.Duration `koanf:"session_ttl"`
	CookieSecure bool          `koanf:"cookie_secure"`
}

type GitHubConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	CallbackURL  string `koanf:"callback_url"`
}

// Enabled reports whether GitHub sign-in is configured.
func (c GitHubConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// GeneratorConfig configures AI draft generation. An empty APIKey leaves
// the generator disabled.
type GeneratorConfig struct {
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"`
	Models            []string      `koanf:"models"`
	MaxWords          int           `koanf:"max_words"`
	MaxAttempts       int           `koanf:"max_attempts"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
	Timeout           time.Duration `koanf:"timeout"`
}

type ContentConfig struct {
	Bucket         string `koanf:"bucket"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`
	// DemoUserCount is reported by the user counter when no real count can
	// be read.
	DemoUserCount int `koanf:"demo_user_count"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:5173"},
			RateLimit:       300,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "data/blog.db",
		},
		Auth: AuthConfig{
			Issuer:     "travel-blog",
			SessionTTL: 7 * 24 * time.Hour,
		},
		Generator: GeneratorConfig{
			BaseURL:           "https://generativelanguage.googleapis.com/v1beta",
			Models:            []string{"gemini-2.0-flash-lite", "gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro"},
			MaxWords:          600,
			MaxAttempts:       3,
			RequestsPerMinute: 15,
			Timeout:           60 * time.Second,
		},
		Content: ContentConfig{
			Bucket:         "blog",
			MaxUploadBytes: 10 << 20,
			DemoUserCount:  2438,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads .env, then builds the configuration from defaults, the config
// file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return LoadFile(findConfigFile())
}

// LoadFile is Load without .env handling and with an explicit YAML path.
// An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	if err := splitListFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

// legacyEnv maps the short variable names to config paths.
var legacyEnv = map[string]string{
	"port":                 "server.port",
	"db_path":              "database.path",
	"jwt_secret":           "auth.jwt_secret",
	"github_client_id":     "github.client_id",
	"github_client_secret": "github.client_secret",
	"github_callback_url":  "github.callback_url",
	"gemini_api_key":       "generator.api_key",
}

const envPrefix = "blog_"

// envKey turns an environment variable name into a koanf path, or "" to
// ignore the variable.
//
//	BLOG_AUTH__SESSION_TTL -> auth.session_ttl
//	JWT_SECRET             -> auth.jwt_secret
func envKey(name string) string {
	key := strings.ToLower(name)
	if path, ok := legacyEnv[key]; ok {
		return path
	}
	if !strings.HasPrefix(key, envPrefix) {
		return ""
	}
	return strings.ReplaceAll(strings.TrimPrefix(key, envPrefix), "__", ".")
}

var listFields = []string{"server.cors_origins", "generator.models"}

// splitListFields turns comma-separated strings from the environment into
// slices. Values from YAML are already slices and are left alone.
func splitListFields(k *koanf.Koanf) error {
	for _, path := range listFields {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("config: setting %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks ranges and cross-field rules.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.GitHub.Enabled() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("github sign-in needs auth.jwt_secret"))
	}
	if c.Generator.MaxWords < 1 {
		errs = append(errs, errors.New("generator.max_words must be positive"))
	}
	if c.Generator.MaxAttempts < 1 {
		errs = append(errs, errors.New("generator.max_attempts must be positive"))
	}
	if c.Generator.APIKey != "" && len(c.Generator.Models) == 0 {
		errs = append(errs, errors.New("generator.models must list at least one model"))
	}
	if c.Content.Bucket == "" {
		errs = append(errs, errors.New("content.bucket is required"))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// NewLogger builds the process logger described by c.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
