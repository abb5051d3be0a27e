package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mock", cfg.Analysis.Backend)
	assert.Equal(t, 3*time.Second, cfg.Analysis.MockDelay)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "none", cfg.Audit.Driver)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
analysis:
  mockDelay: 250ms
audit:
  driver: MySQL
  host: db
  name: agro
  user: agro
  password: secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Analysis.MockDelay)
	assert.Equal(t, "mysql", cfg.Audit.Driver)
	assert.Equal(t, "agro:secret@tcp(db:3306)/agro?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
	// untouched sections keep defaults
	assert.Equal(t, int64(64<<20), cfg.Server.MaxUploadBytes)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("port and analyzer", func(t *testing.T) {
		t.Setenv("AGROSCAN_PORT", "7000")
		t.Setenv("AGROSCAN_ANALYZER", "openai")
		t.Setenv("OPENAI_API_KEY", "sk-test")

		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "openai", cfg.Analysis.Backend)
		assert.Equal(t, "sk-test", cfg.Analysis.OpenAIAPIKey)
	})

	t.Run("bad duration is ignored", func(t *testing.T) {
		t.Setenv("AGROSCAN_MOCK_DELAY", "soon")
		cfg := Default()
		cfg.applyEnvOverrides()
		assert.Equal(t, 3*time.Second, cfg.Analysis.MockDelay)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"openai without key", func(c *Config) { c.Analysis.Backend = "openai" }, "OPENAI_API_KEY"},
		{"gemini without key", func(c *Config) { c.Analysis.Backend = "gemini" }, "GEMINI_API_KEY"},
		{"unknown backend", func(c *Config) { c.Analysis.Backend = "tflite" }, "invalid analysis.backend"},
		{"minio without endpoint", func(c *Config) { c.Storage.Driver = "minio" }, "requires endpoint"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "s3" }, "invalid storage.driver"},
		{"postgres without host", func(c *Config) { c.Audit.Driver = "postgres" }, "requires host"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default()
	cfg.Audit.Host = "pg"
	cfg.Audit.User = "u"
	cfg.Audit.Password = "p"
	cfg.Audit.Name = "agro"
	assert.Equal(t, "host=pg port=5432 user=u password=p dbname=agro sslmode=disable", cfg.PostgresDSN())
}
