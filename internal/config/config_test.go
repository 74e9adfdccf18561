package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_YAMLWithDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
database_url: postgres://localhost/scanner
parser_url: http://localhost:8090
normal_pool_size: 4
headless: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/scanner", cfg.DatabaseURL)
	assert.Equal(t, 4, cfg.NormalPoolSize)
	assert.Equal(t, 1, cfg.IsolatedPoolSize)
	assert.False(t, cfg.IsHeadless())
	assert.Equal(t, ".cache", cfg.SettingsPath)
	assert.Equal(t, ".cookies", cfg.CookiesPath)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 300, cfg.ProcessingLimit)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
database_url: postgres://yaml/scanner
parser_url: http://yaml
`)
	t.Setenv("DATABASE_URL", "postgres://env/scanner")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("SCAN_ON_START", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/scanner", cfg.DatabaseURL)
	assert.Equal(t, "http://yaml", cfg.ParserURL)
	assert.Equal(t, int64(42), cfg.TelegramChatID)
	assert.True(t, cfg.TelegramEnabled())
	assert.True(t, cfg.ScanOnStart)
	assert.True(t, cfg.IsHeadless())
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://env/scanner")
	t.Setenv("PARSER_URL", "http://parser")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://parser", cfg.ParserURL)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PARSER_URL", "")
	path := writeConfig(t, `
telegram_token: abc
normal_pool_size: -1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "PARSER_URL is required")
	assert.Contains(t, err.Error(), "TELEGRAM_CHAT_ID is required")
	assert.Contains(t, err.Error(), "normal_pool_size must be at least 1")
}

func TestLoad_BadYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(writeConfig(t, "database_url: [unterminated"))
	assert.Error(t, err)
}

func TestRead_SkipsValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PARSER_URL", "")

	cfg, err := Read(writeConfig(t, "settings_path: /tmp/scanner"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/scanner", cfg.SettingsPath)
	assert.Error(t, cfg.Validate())
}
