package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
)

// DefaultChannel is the redis channel settlements are published on
const DefaultChannel = "blackjack:settlements"

// Settlement is emitted once per game when it reaches a terminal state.
type Settlement struct {
	GameID     string           `json:"gameId"`
	PlayerID   string           `json:"playerId"`
	State      blackjack.State  `json:"state"`
	Result     blackjack.Result `json:"result"`
	NetProfit  decimal.Decimal  `json:"netProfit"`
	NewBalance decimal.Decimal  `json:"newBalance"`
	EndedAt    time.Time        `json:"endedAt"`
}

func newSettlement(g *blackjack.Game, balance decimal.Decimal) Settlement {
	s := Settlement{
		GameID:     g.ID,
		PlayerID:   g.PlayerID,
		State:      g.State,
		Result:     g.Result,
		NetProfit:  g.NetProfit,
		NewBalance: balance,
	}
	if g.EndedAt != nil {
		s.EndedAt = *g.EndedAt
	}
	return s
}

// Notifier receives settlements. Notify must not block the caller on
// delivery and never fails the action that produced the settlement.
type Notifier interface {
	Notify(ctx context.Context, s Settlement)
}

// LogNotifier writes settlements to the log
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, s Settlement) {
	n.logger.Info().
		Str("game_id", s.GameID).
		Str("player_id", s.PlayerID).
		Str("result", string(s.Result)).
		Str("net_profit", s.NetProfit.String()).
		Str("balance", s.NewBalance.String()).
		Msg("Game settled")
}

// RedisNotifier publishes settlements as JSON on a redis channel.
// Publishing happens in the background; failures are logged and dropped.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewRedisNotifier(client redis.UniversalClient, channel string, logger zerolog.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
		logger:  logger.With().Str("component", "redis-notifier").Logger(),
	}
}

func (n *RedisNotifier) Notify(_ context.Context, s Settlement) {
	payload, err := json.Marshal(s)
	if err != nil {
		n.logger.Error().Err(err).Str("game_id", s.GameID).Msg("Failed to encode settlement")
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
			n.logger.Warn().Err(err).Str("game_id", s.GameID).Msg("Settlement publish failed")
		}
	}()
}

// Close waits for in-flight publishes
func (n *RedisNotifier) Close() {
	n.wg.Wait()
}

// MultiNotifier fans a settlement out to several notifiers
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, s Settlement) {
	for _, n := range m {
		n.Notify(ctx, s)
	}
}
