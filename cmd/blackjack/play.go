package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/client"
	"github.com/lox/blackjack/internal/server"
)

// PlayCmd starts an interactive session. Flags override the config file.
type PlayCmd struct {
	Config   string `kong:"default='blackjack-client.hcl',help='Path to the client HCL config file'"`
	Server   string `kong:"help='Server URL, e.g. http://localhost:8080'"`
	User     string `kong:"help='Player ID (defaults to $USER)'"`
	Token    string `kong:"env='BLACKJACK_TOKEN',help='Bearer token when the server requires auth'"`
	Bet      string `kong:"help='Default bet'"`
	HTTPOnly bool   `kong:"name='http-only',help='Skip the websocket channel'"`
	NoColor  bool   `kong:"name='no-color',help='Disable colored output'"`
	Debug    bool   `kong:"help='Enable debug logging'"`
}

func (c *PlayCmd) Run() error {
	cfg, err := client.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Server != "" {
		cfg.Server.URL = c.Server
	}
	if c.Token != "" {
		cfg.Server.Token = c.Token
	}
	if c.User != "" {
		cfg.Player.ID = c.User
	}
	if cfg.Player.ID == "" {
		cfg.Player.ID = os.Getenv("USER")
	}
	if c.Bet != "" {
		cfg.Player.DefaultBet = c.Bet
	}
	if c.Debug {
		cfg.UI.LogLevel = "debug"
	}
	if c.NoColor {
		color := false
		cfg.UI.Color = &color
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Player.ID == "" {
		return errors.New("player ID is required, pass --user")
	}
	bet, err := cfg.DefaultBet()
	if err != nil {
		return err
	}

	logger := shared.SetupConsoleLogger(cfg.UI.LogLevel)

	opts := cfg.Options()
	opts.Logger = logger
	cl, err := client.New(cfg.Server.URL, opts)
	if err != nil {
		return err
	}
	defer cl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	healthCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	err = server.WaitForHealthy(healthCtx, cfg.Server.URL, 200*time.Millisecond)
	cancel()
	if err != nil {
		return fmt.Errorf("server %s is not reachable: %w", cfg.Server.URL, err)
	}

	if !c.HTTPOnly {
		if err := cl.Connect(ctx); err != nil {
			logger.Warn("Websocket unavailable, using HTTP", "error", err)
		}
	}

	table := client.NewTable(cl, cfg.Player.ID, bet, client.NewRenderer(client.NewStyles(*cfg.UI.Color)), os.Stdout, logger)
	if client.IsTerminal() {
		err = table.RunTerminal(ctx)
	} else {
		err = table.Run(ctx, os.Stdin)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
