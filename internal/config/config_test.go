package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 1000.0, cfg.Registry.MaxCapacity)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Archive.Interval)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
storage:
  driver: memory
registry:
  max_capacity: 250
  code_pattern: "^BRL-[0-9]{4}$"
jwt:
  secret: from-file
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 250.0, cfg.Registry.MaxCapacity)
	assert.Equal(t, "^BRL-[0-9]{4}$", cfg.Registry.CodePattern)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.App.Timezone = "UTC"
	cfg.JWT.Secret = "s3cret"
	require.NoError(t, cfg.Validate())

	cfg.JWT.Secret = ""
	cfg.Storage.Driver = "mongo"
	cfg.Archive.Enabled = true
	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "jwt.secret"))
	assert.True(t, strings.Contains(msg, "storage.driver"))
	assert.True(t, strings.Contains(msg, "archive.bucket"))
}

func TestDSN(t *testing.T) {
	var cfg Config
	cfg.Database.User = "app"
	cfg.Database.Password = "p@ss"
	cfg.Database.Host = "db"
	cfg.Database.Port = 5432
	cfg.Database.Name = "barrel_db"
	cfg.Database.SSLMode = "disable"
	assert.Equal(t, "postgres://app:p%40ss@db:5432/barrel_db?sslmode=disable", cfg.DSN())
}
