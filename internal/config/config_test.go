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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  env: dev
http:
  addr: ":9090"
postgres:
  dsn: "postgres://localhost/test"
  query_timeout: 2s
produce:
  max_retries: 5
metrics:
  enabled: true
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, ":9090", c.HTTP.Addr)
	assert.Equal(t, "postgres://localhost/test", c.Postgres.DSN)
	assert.Equal(t, 2*time.Second, c.Postgres.QueryTimeout)
	assert.Equal(t, 5, c.Produce.MaxRetries)
	assert.True(t, c.Metrics.Enabled)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":8080"
postgres:
  dsn: "postgres://localhost/test"
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, c.Postgres.QueryTimeout)
	assert.Equal(t, 3, c.Produce.MaxRetries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
