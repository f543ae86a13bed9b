package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	p := writeYAML(t, `
app:
  http:
    port: 9090
cache:
  driver: redis
  ttlSec: 30
redis:
  poolSize: 7
rules:
  minAge: 5
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9090, c.App.HTTP.Port)
	assert.Equal(t, "student-records", c.App.Name)
	assert.Equal(t, "redis", c.Cache.Driver)
	assert.Equal(t, 30*time.Second, c.Cache.TTL())
	assert.Equal(t, 200*time.Millisecond, c.Cache.Timeout())
	assert.Equal(t, 7, c.Redis.PoolSize)
	assert.Equal(t, 5, c.Rules.MinAge)
	assert.Equal(t, 100, c.Rules.MaxAge)
	assert.Equal(t, `^[6-9][0-9]{9}$`, c.Rules.MobilePattern)
	assert.Equal(t, 3*time.Second, c.Store.Timeout())
	assert.True(t, c.Sequence.ReconcileOnStart)
}

func TestLoad_EnvOverride(t *testing.T) {
	p := writeYAML(t, "db:\n  driver: sqlite\n")
	t.Setenv("APP_DB_DSN", "file:override.db")
	t.Setenv("APP_STORE_TIMEOUTMS", "750")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "file:override.db", c.DB.DSN)
	assert.Equal(t, 750*time.Millisecond, c.Store.Timeout())
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeYAML(t, "cache:\n  driver: memcached\n"))
	assert.ErrorContains(t, err, "cache.driver")

	_, err = Load(writeYAML(t, "rules:\n  minAge: 10\n  maxAge: 5\n"))
	assert.ErrorContains(t, err, "age range")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
