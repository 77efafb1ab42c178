// Package gateway serialises player requests per game and commits each
// accepted action together with its balance movement. Both transports
// (websocket and HTTP) call the same Gateway, so a request behaves the same
// whichever channel delivered it.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/gameid"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/store"
)

// DefaultStartingBalance is credited to a player on first deal
var DefaultStartingBalance = decimal.NewFromInt(1000)

// Config wires a Gateway. Store is required; everything else has a default.
type Config struct {
	Store           store.Store
	RNG             *randutil.Locked
	Notifier        Notifier
	Clock           quartz.Clock
	IDs             *gameid.Generator
	Logger          zerolog.Logger
	StartingBalance decimal.Decimal
	// NewShoe overrides shoe construction, mainly for tests.
	NewShoe func() *deck.Shoe
}

// Gateway is the single entry point for game requests
type Gateway struct {
	store    store.Store
	proc     *blackjack.Processor
	rng      *randutil.Locked
	notifier Notifier
	clock    quartz.Clock
	ids      *gameid.Generator
	logger   zerolog.Logger
	starting decimal.Decimal
	newShoe  func() *deck.Shoe
	locks    *keyedMutex
}

func New(cfg Config) *Gateway {
	g := &Gateway{
		store:    cfg.Store,
		rng:      cfg.RNG,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		ids:      cfg.IDs,
		logger:   cfg.Logger.With().Str("component", "gateway").Logger(),
		starting: cfg.StartingBalance,
		newShoe:  cfg.NewShoe,
		locks:    newKeyedMutex(),
	}
	if g.rng == nil {
		rng, seed := randutil.NewFromTime()
		g.rng = randutil.NewLocked(rng)
		g.logger.Debug().Int64("seed", seed).Msg("Seeded random source")
	}
	if g.clock == nil {
		g.clock = quartz.NewReal()
	}
	if g.notifier == nil {
		g.notifier = NewLogNotifier(cfg.Logger)
	}
	if g.ids == nil {
		g.ids = gameid.NewGenerator(nil)
	}
	if g.starting.IsZero() {
		g.starting = DefaultStartingBalance
	}
	if g.newShoe == nil {
		g.newShoe = func() *deck.Shoe { return deck.NewShoe(g.rng.Fork()) }
	}
	g.proc = blackjack.NewProcessor(blackjack.NewDealerPolicy(g.rng), g.clock)
	return g
}

// Request is one player action
type Request struct {
	GameID    string            `json:"gameId"`
	Action    string            `json:"action"`
	UserID    string            `json:"userId"`
	RequestID string            `json:"requestId,omitempty"`
	Payload   blackjack.Payload `json:"payload"`
}

// DealRequest starts a new game
type DealRequest struct {
	UserID    string          `json:"userId"`
	Bet       decimal.Decimal `json:"betAmount"`
	RequestID string          `json:"requestId,omitempty"`
}

// Apply validates and applies one action. Requests for the same game are
// processed one at a time in arrival order. While the game is in progress, a
// request whose RequestID matches the last committed one is answered from
// the stored game. Once the game has settled every action, retransmissions
// included, is rejected with CONFLICT_STATE.
func (gw *Gateway) Apply(ctx context.Context, req Request) (*blackjack.View, error) {
	if strings.TrimSpace(req.GameID) == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, blackjack.ErrMissingField
	}
	action, err := blackjack.ParseAction(req.Action)
	if err != nil {
		return nil, err
	}

	unlock := gw.locks.Lock("game:" + req.GameID)
	defer unlock()

	logger := gw.logger.With().
		Str("game_id", req.GameID).
		Str("player_id", req.UserID).
		Str("action", string(action)).
		Logger()

	g, err := gw.store.GetGame(ctx, req.GameID)
	if err != nil {
		return nil, gw.classify(logger, err)
	}
	if g.PlayerID != req.UserID {
		return nil, blackjack.ErrNotOwner
	}

	balance, err := gw.store.Balance(ctx, g.PlayerID)
	if err != nil {
		return nil, gw.classify(logger, err)
	}

	if g.State.IsTerminal() {
		logger.Debug().Str("request_id", req.RequestID).Str("state", string(g.State)).Msg("Action on settled game rejected")
		return nil, blackjack.ErrNotPlaying
	}
	if req.RequestID != "" && req.RequestID == g.LastRequestID && action == g.LastAction {
		logger.Debug().Str("request_id", req.RequestID).Msg("Duplicate request, returning committed state")
		return blackjack.NewView(g, &balance), nil
	}

	wallet := blackjack.NewWallet(balance)
	next, err := gw.proc.Apply(g, action, req.Payload, wallet)
	if err != nil {
		logger.Debug().Err(err).Msg("Action rejected")
		return nil, gw.classify(logger, err)
	}
	next.LastRequestID = req.RequestID

	newBalance, err := gw.store.CommitGame(ctx, store.Commit{
		Game:            next,
		ExpectedState:   g.State,
		ExpectedVersion: g.Version,
		BalanceDelta:    wallet.Delta(),
	})
	if err != nil {
		return nil, gw.classify(logger, err)
	}

	logger.Debug().
		Int64("version", next.Version).
		Str("state", string(next.State)).
		Str("balance_delta", wallet.Delta().String()).
		Msg("Action committed")

	if next.State.IsTerminal() {
		gw.notifier.Notify(ctx, newSettlement(next, newBalance))
	}
	return blackjack.NewView(next, &newBalance), nil
}

// Deal creates the player on first use, then deals and stores a new game.
// A player may only have one game in progress.
func (gw *Gateway) Deal(ctx context.Context, req DealRequest) (*blackjack.View, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, blackjack.ErrMissingField
	}
	if err := blackjack.ValidateBet(req.Bet); err != nil {
		return nil, err
	}

	unlock := gw.locks.Lock("player:" + req.UserID)
	defer unlock()

	logger := gw.logger.With().Str("player_id", req.UserID).Logger()

	balance, err := gw.store.EnsurePlayer(ctx, req.UserID, gw.starting)
	if err != nil {
		return nil, gw.classify(logger, err)
	}
	if active, err := gw.store.ActiveGame(ctx, req.UserID); err == nil {
		if req.RequestID != "" && active.LastRequestID == req.RequestID && active.LastAction == "" {
			return blackjack.NewView(active, &balance), nil
		}
		logger.Debug().Str("game_id", active.ID).Msg("Deal rejected, game in progress")
		return nil, blackjack.ErrActiveGame
	} else if !errors.Is(err, blackjack.ErrGameNotFound) {
		return nil, gw.classify(logger, err)
	}

	id, err := gw.ids.Generate()
	if err != nil {
		return nil, gw.classify(logger, err)
	}

	wallet := blackjack.NewWallet(balance)
	g, err := gw.proc.Deal(blackjack.NewGame(id, req.UserID, req.Bet, gw.newShoe(), gw.clock.Now()), wallet)
	if err != nil {
		return nil, gw.classify(logger, err)
	}
	g.LastRequestID = req.RequestID

	newBalance, err := gw.store.CreateGame(ctx, g, wallet.Delta())
	if err != nil {
		return nil, gw.classify(logger, err)
	}

	logger.Info().
		Str("game_id", g.ID).
		Str("bet", req.Bet.String()).
		Str("balance", newBalance.String()).
		Msg("Game dealt")
	return blackjack.NewView(g, &newBalance), nil
}

// Game returns the player's view of a game. An empty userID skips the
// ownership check.
func (gw *Gateway) Game(ctx context.Context, gameID, userID string) (*blackjack.View, error) {
	g, err := gw.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, gw.classify(gw.logger, err)
	}
	if userID != "" && g.PlayerID != userID {
		return nil, blackjack.ErrNotOwner
	}
	balance, err := gw.store.Balance(ctx, g.PlayerID)
	if err != nil {
		return nil, gw.classify(gw.logger, err)
	}
	return blackjack.NewView(g, &balance), nil
}

// Balance returns a player's balance
func (gw *Gateway) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	balance, err := gw.store.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero, gw.classify(gw.logger, err)
	}
	return balance, nil
}

// History lists settled games
func (gw *Gateway) History(ctx context.Context, q store.HistoryQuery) (*store.HistoryPage, error) {
	page, err := gw.store.History(ctx, q)
	if err != nil {
		return nil, gw.classify(gw.logger, err)
	}
	return page, nil
}

// classify passes typed game errors through and wraps anything else as an
// internal error, logging it since the caller only sees a generic message.
func (gw *Gateway) classify(logger zerolog.Logger, err error) error {
	var gameErr *blackjack.Error
	if errors.As(err, &gameErr) {
		return err
	}
	logger.Error().Err(err).Msg("Request failed")
	return blackjack.Internal(err)
}
