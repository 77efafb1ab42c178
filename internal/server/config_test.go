package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, "localhost:8080", c.ServerAddress())
	assert.Equal(t, DriverSQLite, c.Store.Driver)
	assert.Equal(t, "blackjack.db", c.Store.DSN)
	assert.Equal(t, "blackjack:settlements", c.Redis.Channel)

	b, err := c.StartingBalance()
	require.NoError(t, err)
	assert.Equal(t, "1000", b.String())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  address         = "0.0.0.0"
  port            = 9090
  log_level       = "debug"
  allowed_origins = ["https://table.example"]
}

store {
  driver = "postgres"
  dsn    = "postgres://localhost/blackjack"
}

redis {
  addr = "localhost:6379"
}

rules {
  starting_balance = "250.50"
  seed             = 42
}

auth {
  url           = "http://auth/validate"
  cache_seconds = 30
}
`), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "0.0.0.0:9090", c.ServerAddress())
	assert.Equal(t, "debug", c.Server.LogLevel)
	assert.Equal(t, []string{"https://table.example"}, c.Server.AllowedOrigins)
	assert.Equal(t, DriverPostgres, c.Store.Driver)
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
	assert.Equal(t, "blackjack:settlements", c.Redis.Channel)
	assert.Equal(t, int64(42), c.Rules.Seed)
	assert.Equal(t, 30*time.Second, c.Auth.CacheTTL())

	b, err := c.StartingBalance()
	require.NoError(t, err)
	assert.Equal(t, "250.5", b.String())
}

func TestLoadConfigMissingFile(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestLoadConfigInvalidHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`server { port = `), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvStore:      DriverPostgres,
		EnvStoreDSN:   "postgres://db/blackjack",
		EnvRedisAddr:  "redis:6379",
		EnvAuthURL:    "http://auth/validate",
		EnvAuthSecret: "s3cret",
		EnvAdmin:      "ops",
	}
	c := &Config{}
	c.applyEnv(func(k string) string { return env[k] })
	c.applyDefaults()

	assert.Equal(t, DriverPostgres, c.Store.Driver)
	assert.Equal(t, "postgres://db/blackjack", c.Store.DSN)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, "http://auth/validate", c.Auth.URL)
	assert.Equal(t, "s3cret", c.Auth.AdminSecret)
	assert.Equal(t, "ops", c.Server.AdminSecret)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres; c.Store.DSN = "" }},
		{"bad balance", func(c *Config) { c.Rules.StartingBalance = "lots" }},
		{"zero balance", func(c *Config) { c.Rules.StartingBalance = "0" }},
		{"negative auth cache", func(c *Config) { c.Auth.CacheSeconds = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			assert.Error(t, c.Validate())
		})
	}

	c := DefaultConfig()
	c.Store.Driver = DriverMemory
	c.Store.DSN = ""
	assert.NoError(t, c.Validate())
}
