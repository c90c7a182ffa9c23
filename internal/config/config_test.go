package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "beekeep.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.InDelta(t, 50, cfg.Anthropic.RequestsPerMinute, 0.001)
	assert.Equal(t, 3, cfg.Anthropic.MaxRetries)
	assert.False(t, cfg.Resolver.ReverseContains)
	assert.False(t, cfg.Resolver.Phonetic)
	assert.InDelta(t, 0.8, cfg.Resolver.PhoneticThreshold, 0.001)
	assert.Equal(t, 4, cfg.Analyze.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 14, cfg.Monitoring.OverdueDays)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/bees
resolver:
  reverse_contains: true
  phonetic: true
  phonetic_threshold: 0.9
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins:
    - https://bigard.example
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/bees", cfg.Store.DatabaseURL)
	assert.True(t, cfg.Resolver.ReverseContains)
	assert.True(t, cfg.Resolver.Phonetic)
	assert.InDelta(t, 0.9, cfg.Resolver.PhoneticThreshold, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://bigard.example"}, cfg.Server.CORSOrigins)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Analyze.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("BEEKEEP_STORE_DRIVER", "memory")
	t.Setenv("BEEKEEP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("BEEKEEP_SERVER_PORT", "3000")
	t.Setenv("BEEKEEP_SERVER_WEBHOOK_SECRET", "hemlig")
	t.Setenv("BEEKEEP_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "hemlig", cfg.Server.WebhookSecret)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "beekeep.db"
	cfg.Anthropic.RequestsPerMinute = 50
	cfg.Analyze.Concurrency = 4
	cfg.Server.Port = 8080
	cfg.Resolver.PhoneticThreshold = 0.8
	return cfg
}

func TestValidateStore(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("store"))

	cfg := validDefaults()
	cfg.Store.Driver = "memory"
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate("store"))

	cfg = validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg = validDefaults()
	cfg.Store.Driver = "mysql"
	err = cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateAnalyze_MissingKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateAnalyze_Concurrency(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Analyze.Concurrency = 0

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze.concurrency")
}

func TestValidateServe_Port(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 9090
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_PhoneticThreshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Resolver.Phonetic = true
	cfg.Resolver.PhoneticThreshold = 1.5

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phonetic_threshold")
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("teleport")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown validation mode")
}
