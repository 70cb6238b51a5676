package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/blog.db", cfg.Database.Path)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 600, cfg.Generator.MaxWords)
	assert.Equal(t, 2438, cfg.Content.DemoUserCount)
	assert.Equal(t, "blog", cfg.Content.Bucket)
	assert.False(t, cfg.GitHub.Enabled())
}

func TestLoadFile_YAMLOverridesDefaults(t *testing.T) {
	path := writeYAML(t, `
server:
  port: 9090
  cors_origins: ["https://blog.example.com"]
auth:
  session_ttl: 12h
generator:
  models: [gemini-pro]
logging:
  level: debug
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://blog.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, []string{"gemini-pro"}, cfg.Generator.Models)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "data/blog.db", cfg.Database.Path)
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := writeYAML(t, "server:\n  port: 9090\n")
	t.Setenv("BLOG_SERVER__PORT", "7070")
	t.Setenv("BLOG_SERVER__CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("BLOG_AUTH__SESSION_TTL", "30m")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionTTL)
}

func TestLoadFile_LegacyEnv(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DB_PATH", "/tmp/legacy.db")
	t.Setenv("JWT_SECRET", "legacy-secret-0123456789")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/tmp/legacy.db", cfg.Database.Path)
	assert.Equal(t, "legacy-secret-0123456789", cfg.Auth.JWTSecret)
	assert.True(t, cfg.GitHub.Enabled())
	assert.Equal(t, "key", cfg.Generator.APIKey)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, false},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, false},
		{"github without secret", func(c *Config) {
			c.GitHub.ClientID, c.GitHub.ClientSecret = "id", "secret"
		}, false},
		{"no ttl", func(c *Config) { c.Auth.SessionTTL = 0 }, false},
		{"api key without models", func(c *Config) {
			c.Generator.APIKey = "k"
			c.Generator.Models = nil
		}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, false},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, false},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.port", envKey("BLOG_SERVER__PORT"))
	assert.Equal(t, "auth.jwt_secret", envKey("JWT_SECRET"))
	assert.Equal(t, "generator.api_key", envKey("GEMINI_API_KEY"))
	assert.Equal(t, "", envKey("HOME"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
