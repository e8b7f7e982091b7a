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

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CRM_ORACLE_PROVIDER", "ollama")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Oracle.Provider)
	assert.Equal(t, 40*time.Minute, cfg.Conversation.TTL)
	assert.Equal(t, 5, cfg.Conversation.CorrectionExamples)
	assert.Equal(t, "1", cfg.Normalize.DefaultCountryCode)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
oracle:
  provider: deepseek
  model: deepseek-chat
  api_key: from-file
  timeout: 5s
conversation:
  ttl: 10m
storage:
  path: /tmp/file.db
`)
	t.Setenv("CRM_ORACLE_API_KEY", "from-env")
	t.Setenv("CRM_STORAGE_PATH", "/tmp/env.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "deepseek", cfg.Oracle.Provider)
	assert.Equal(t, "deepseek-chat", cfg.Oracle.Model)
	assert.Equal(t, "from-env", cfg.Oracle.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Conversation.TTL)
	assert.Equal(t, "/tmp/env.db", cfg.Storage.Path)
	// untouched sections keep their defaults
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "oracle: [unterminated")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "ollama needs no key",
			mutate: func(c *Config) { c.Oracle.Provider = "ollama" },
		},
		{
			name:    "openai without key",
			mutate:  func(c *Config) {},
			wantErr: "requires an api key",
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Oracle.Provider = "clippy"
			},
			wantErr: "unsupported oracle provider",
		},
		{
			name: "redis without url",
			mutate: func(c *Config) {
				c.Oracle.Provider = "ollama"
				c.Conversation.Store = "redis"
			},
			wantErr: "requires a url",
		},
		{
			name: "unknown store",
			mutate: func(c *Config) {
				c.Oracle.Provider = "ollama"
				c.Conversation.Store = "etcd"
			},
			wantErr: "unsupported conversation store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
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
