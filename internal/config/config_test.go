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

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  env: development
  port: 9090
storage:
  driver: memory
jwt:
  alg: hs256
  hs_secret: s3cret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.True(t, cfg.App.IsDev())
	assert.Equal(t, "HS256", cfg.JWT.Alg)
	assert.Equal(t, 60*time.Second, cfg.DedupWindow)
	assert.Equal(t, 25*time.Second, cfg.PingInterval)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.Messages.DefaultPageSize)
	assert.Equal(t, "none", cfg.Events.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 8080
storage:
  driver: mongo
mongodb:
  uri: mongodb://file:27017
jwt:
  alg: HS256
  hs_secret: s3cret
`)
	t.Setenv("MONGODB_URI", "mongodb://env:27017")
	t.Setenv("APP_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://env:27017", cfg.Mongo.URI)
	assert.Equal(t, 7070, cfg.App.Port)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 8080
storage:
  driver: mongo
jwt:
  alg: RS256
events:
  driver: kafka
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongodb.uri")
	assert.Contains(t, err.Error(), "jwt.public_key_path")
	assert.Contains(t, err.Error(), "kafka.brokers")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
