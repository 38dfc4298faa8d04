package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.GRPCPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "X-Organization", cfg.Organization.SelectorHeader)
	assert.Equal(t, uint8(4), cfg.Security.Argon2Parallelism)
	assert.Equal(t, 24*time.Hour, cfg.Session.Lifetime)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("PINPOINT_BASE_DOMAIN", "pinpoint.example")
	t.Setenv("PINPOINT_DEFAULT_SUBDOMAIN", "austin")
	t.Setenv("RATELIMIT_PUBLIC_RPS", "1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "pinpoint.example", cfg.Organization.BaseDomain)
	assert.Equal(t, "austin", cfg.Organization.DefaultSubdomain)
	assert.InDelta(t, 1.5, cfg.RateLimit.PublicRequestsPerSecond, 0.0001)
	assert.Equal(t, "postgres://pinpoint:pw@localhost:5432/pinpoint?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, cfg.Database, cfg.Database.Migrator())
}

func TestDatabaseConfig_Migrator(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("DB_USER", "pinpoint_app")
	t.Setenv("DB_PASSWORD", "app-pw")
	t.Setenv("DB_MIGRATE_USER", "pinpoint_owner")
	t.Setenv("DB_MIGRATE_PASSWORD", "owner-pw")

	cfg, err := Load()
	require.NoError(t, err)

	m := cfg.Database.Migrator()
	assert.Equal(t, "pinpoint_owner", m.User)
	assert.Equal(t, "owner-pw", m.Password)
	assert.Equal(t, cfg.Database.Host, m.Host)
	assert.Equal(t, "pinpoint_app", cfg.Database.User)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinpoint.yaml")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER: memory\nSERVER_PORT: \"9000\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SESSION_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
	assert.Contains(t, err.Error(), "DB_PASSWORD")

	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown STORE_DRIVER")
}
