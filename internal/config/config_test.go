package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalYAML = `
app:
  env: development
  port: 5000
  read_timeout: 10s
  frontend_url: http://localhost:3000
  jwt:
    secret: test-secret
mongo:
  uri: mongodb://localhost:27017
`

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.App.ReadTimeout))
	assert.Equal(t, 7, cfg.App.JWT.ExpireDays)
	assert.Equal(t, "users", cfg.User.Collection)
	assert.Equal(t, 5, cfg.Security.OtpTTLMinutes)
	assert.Equal(t, 15, cfg.Security.ResetTTLMinutes)
	assert.Equal(t, 3, cfg.Security.MaxUnverifiedRecords)
	assert.Equal(t, 30, cfg.Reaper.IntervalMinutes)
	assert.Equal(t, 30, cfg.Reaper.MaxAgeMinutes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("MONGO_DB", "other")
	t.Setenv("OTP_TTL_MINUTES", "2")
	t.Setenv("REAPER_INTERVAL_MINUTES", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "env-secret", cfg.App.JWT.Secret)
	assert.Equal(t, "other", cfg.Mongo.Database)
	assert.Equal(t, 2, cfg.Security.OtpTTLMinutes)
	assert.Equal(t, 5, cfg.Reaper.IntervalMinutes)
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
app:
  frontend_url: http://localhost:3000
mongo:
  uri: mongodb://localhost:27017
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_MissingMongoURI(t *testing.T) {
	path := writeConfig(t, `
app:
  frontend_url: http://localhost:3000
  jwt:
    secret: s
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
