package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/auth"
	"github.com/lox/blackjack/internal/gateway"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/server"
	"github.com/lox/blackjack/internal/store"
)

// ServerCmd runs the game server. Flags override the config file.
type ServerCmd struct {
	Config   string `kong:"default='blackjack.hcl',help='Path to the HCL config file'"`
	Addr     string `kong:"help='Listen address, e.g. :8080'"`
	Store    string `kong:"help='Store driver (memory, sqlite, postgres)'"`
	DSN      string `kong:"help='Store DSN or SQLite path'"`
	Debug    bool   `kong:"help='Enable debug logging'"`
	JSONLogs bool   `kong:"name='json-logs',help='Log JSON instead of console output'"`
	Seed     *int64 `kong:"help='Deterministic RNG seed (optional)'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Store != "" {
		cfg.Store.Driver = c.Store
	}
	if c.DSN != "" {
		cfg.Store.DSN = c.DSN
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}
	if c.Seed != nil {
		cfg.Rules.Seed = *c.Seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := shared.SetupLogger(cfg.Server.LogLevel, c.JSONLogs)
	if err != nil {
		return err
	}

	ctx, cancel := shared.SignalContext(logger)
	defer cancel()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier, closeNotifier := buildNotifier(ctx, cfg.Redis, logger)
	defer closeNotifier()

	starting, err := cfg.StartingBalance()
	if err != nil {
		return err
	}

	rng, seed := randutil.NewFromTime()
	if cfg.Rules.Seed != 0 {
		seed = cfg.Rules.Seed
		rng = randutil.New(seed)
		logger.Info().Int64("seed", seed).Msg("Using deterministic seed")
	} else {
		logger.Info().Int64("seed", seed).Msg("Using random seed")
	}

	gw := gateway.New(gateway.Config{
		Store:           st,
		RNG:             randutil.NewLocked(rng),
		Notifier:        notifier,
		Logger:          logger,
		StartingBalance: starting,
	})

	var validator auth.Validator = auth.NewNoopValidator()
	if cfg.Auth.URL != "" {
		validator = auth.NewHTTPValidator(cfg.Auth.URL, auth.HTTPOptions{
			AdminSecret: cfg.Auth.AdminSecret,
			CacheTTL:    cfg.Auth.CacheTTL(),
		})
		logger.Info().Str("url", cfg.Auth.URL).Msg("Token authentication enabled")
	}

	srv := server.New(gw, logger, server.Options{
		Validator:      validator,
		AdminSecret:    cfg.Server.AdminSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	addr := cfg.ServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	logger.Info().
		Str("address", addr).
		Str("store", cfg.Store.Driver).
		Str("starting_balance", starting.String()).
		Bool("redis", cfg.Redis.Addr != "").
		Msg("Starting blackjack server")

	return srv.Serve(ctx, addr)
}

func openStore(ctx context.Context, cfg *server.StoreSettings) (store.Store, error) {
	switch cfg.Driver {
	case server.DriverMemory:
		return store.NewMemory(), nil
	case server.DriverSQLite:
		return store.OpenSQLite(ctx, cfg.DSN)
	case server.DriverPostgres:
		return store.OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// buildNotifier always logs settlements and also publishes them to Redis
// when an address is configured. An unreachable Redis is logged, not fatal.
func buildNotifier(ctx context.Context, cfg *server.RedisSettings, logger zerolog.Logger) (gateway.Notifier, func()) {
	logNotifier := gateway.NewLogNotifier(logger)
	if cfg.Addr == "" {
		return logNotifier, func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis unreachable, settlements may not be published")
	}

	publisher := gateway.NewRedisNotifier(client, cfg.Channel, logger)
	return gateway.MultiNotifier{logNotifier, publisher}, func() {
		publisher.Close()
		_ = client.Close()
	}
}
