package client

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"
)

// Config is the client configuration file
type Config struct {
	Server ServerConnection `hcl:"server,block"`
	Player PlayerSettings   `hcl:"player,block"`
	UI     UISettings       `hcl:"ui,block"`
}

// ServerConnection contains server connection settings
type ServerConnection struct {
	URL   string `hcl:"url,optional"`
	Token string `hcl:"token,optional"`
	// RequestTimeout is how long to wait for a websocket reply, in
	// milliseconds, before resending over HTTP.
	RequestTimeout int `hcl:"request_timeout,optional"`
	ConnectTimeout int `hcl:"connect_timeout,optional"`
}

// PlayerSettings contains player-specific settings
type PlayerSettings struct {
	ID         string `hcl:"id,optional"`
	DefaultBet string `hcl:"default_bet,optional"`
}

// UISettings contains user interface settings
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	Color    *bool  `hcl:"color,optional"`
}

// DefaultConfig returns default client configuration
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig loads client configuration from an HCL file, returning the
// defaults if the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	if diags := gohcl.DecodeBody(file.Body, nil, &config); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = "http://localhost:8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 2000
	}
	if c.Server.ConnectTimeout == 0 {
		c.Server.ConnectTimeout = 5000
	}
	if c.Player.DefaultBet == "" {
		c.Player.DefaultBet = "10"
	}
	if c.UI.LogLevel == "" {
		c.UI.LogLevel = "warn"
	}
	if c.UI.Color == nil {
		color := true
		c.UI.Color = &color
	}
}

// Validate validates the client configuration
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if _, err := c.DefaultBet(); err != nil {
		return err
	}

	if _, err := log.ParseLevel(c.UI.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.UI.LogLevel, err)
	}
	return nil
}

// DefaultBet parses the configured default bet
func (c *Config) DefaultBet() (decimal.Decimal, error) {
	bet, err := decimal.NewFromString(c.Player.DefaultBet)
	if err != nil || !bet.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid default bet %q", c.Player.DefaultBet)
	}
	return bet, nil
}

// Options converts the file settings into client options
func (c *Config) Options() Options {
	return Options{
		Token:          c.Server.Token,
		RequestTimeout: time.Duration(c.Server.RequestTimeout) * time.Millisecond,
		ConnectTimeout: time.Duration(c.Server.ConnectTimeout) * time.Millisecond,
	}
}
