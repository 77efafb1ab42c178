package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Environment variables that override the config file
const (
	EnvStoreDSN   = "BLACKJACK_STORE_DSN"
	EnvStore      = "BLACKJACK_STORE"
	EnvRedisAddr  = "BLACKJACK_REDIS_ADDR"
	EnvAuthURL    = "BLACKJACK_AUTH_URL"
	EnvAuthSecret = "BLACKJACK_AUTH_SECRET"
	EnvAdmin      = "BLACKJACK_ADMIN_SECRET"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the complete server configuration
type Config struct {
	Server *ServerSettings `hcl:"server,block"`
	Store  *StoreSettings  `hcl:"store,block"`
	Redis  *RedisSettings  `hcl:"redis,block"`
	Rules  *RulesSettings  `hcl:"rules,block"`
	Auth   *AuthSettings   `hcl:"auth,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address        string   `hcl:"address,optional"`
	Port           int      `hcl:"port,optional"`
	LogLevel       string   `hcl:"log_level,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
	// AdminSecret guards the account administration routes
	AdminSecret string `hcl:"admin_secret,optional"`
}

// StoreSettings selects the persistence backend
type StoreSettings struct {
	Driver string `hcl:"driver,optional"`
	DSN    string `hcl:"dsn,optional"`
}

// RedisSettings enables settlement publishing when Addr is set
type RedisSettings struct {
	Addr    string `hcl:"addr,optional"`
	Channel string `hcl:"channel,optional"`
}

// RulesSettings holds table rules
type RulesSettings struct {
	StartingBalance string `hcl:"starting_balance,optional"`
	// Seed makes shuffles and dealer decisions reproducible when non-zero.
	Seed int64 `hcl:"seed,optional"`
}

// AuthSettings enables token validation against an external service
type AuthSettings struct {
	URL         string `hcl:"url,optional"`
	AdminSecret string `hcl:"admin_secret,optional"`
	// CacheSeconds keeps accepted tokens; zero checks every request.
	CacheSeconds int `hcl:"cache_seconds,optional"`
}

// CacheTTL returns how long accepted tokens are trusted without a recheck
func (a *AuthSettings) CacheTTL() time.Duration {
	return time.Duration(a.CacheSeconds) * time.Second
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist, then applies environment overrides. A .env
// file in the working directory is loaded first if present.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	config := &Config{}
	if _, err := os.Stat(filename); err == nil {
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
		}
		if diags := gohcl.DecodeBody(file.Body, nil, config); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", filename, err)
	}

	config.applyEnv(os.Getenv)
	config.applyDefaults()
	return config, nil
}

func (c *Config) ensureBlocks() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Store == nil {
		c.Store = &StoreSettings{}
	}
	if c.Redis == nil {
		c.Redis = &RedisSettings{}
	}
	if c.Rules == nil {
		c.Rules = &RulesSettings{}
	}
	if c.Auth == nil {
		c.Auth = &AuthSettings{}
	}
}

func (c *Config) applyDefaults() {
	c.ensureBlocks()
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.DSN == "" && c.Store.Driver == DriverSQLite {
		c.Store.DSN = "blackjack.db"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "blackjack:settlements"
	}
	if c.Rules.StartingBalance == "" {
		c.Rules.StartingBalance = "1000"
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.ensureBlocks()
	if v := getenv(EnvStore); v != "" {
		c.Store.Driver = v
	}
	if v := getenv(EnvStoreDSN); v != "" {
		c.Store.DSN = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv(EnvAuthURL); v != "" {
		c.Auth.URL = v
	}
	if v := getenv(EnvAuthSecret); v != "" {
		c.Auth.AdminSecret = v
	}
	if v := getenv(EnvAdmin); v != "" {
		c.Server.AdminSecret = v
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store %s: dsn is required", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Auth.CacheSeconds < 0 {
		return fmt.Errorf("auth cache_seconds must not be negative, got %d", c.Auth.CacheSeconds)
	}
	if _, err := c.StartingBalance(); err != nil {
		return err
	}
	return nil
}

// StartingBalance parses the configured balance for new players
func (c *Config) StartingBalance() (decimal.Decimal, error) {
	b, err := decimal.NewFromString(c.Rules.StartingBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid starting_balance %q: %w", c.Rules.StartingBalance, err)
	}
	if !b.IsPositive() {
		return decimal.Zero, fmt.Errorf("starting_balance must be positive, got %s", b)
	}
	return b, nil
}

// ServerAddress returns the listen address
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
