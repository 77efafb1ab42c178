package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/store"
)

// DemoPlayerID is the account served when a caller names no player
const DemoPlayerID = "demo"

// AdjustmentType labels a manual balance movement
type AdjustmentType string

const (
	AdjustAdminBonus  AdjustmentType = "ADMIN_BONUS"
	AdjustAdminCredit AdjustmentType = "ADMIN_CREDIT"
	AdjustAdminDebit  AdjustmentType = "ADMIN_DEBIT"
	AdjustCorrection  AdjustmentType = "CORRECTION"
	AdjustDeposit     AdjustmentType = "DEPOSIT"
	AdjustWithdrawal  AdjustmentType = "WITHDRAWAL"
)

// ParseAdjustmentType accepts a known type in any case. Empty means
// CORRECTION.
func ParseAdjustmentType(s string) (AdjustmentType, error) {
	t := AdjustmentType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case "":
		return AdjustCorrection, nil
	case AdjustAdminBonus, AdjustAdminCredit, AdjustAdminDebit, AdjustCorrection, AdjustDeposit, AdjustWithdrawal:
		return t, nil
	}
	return "", blackjack.ErrInvalidAdjustment
}

// Adjustment moves a player's balance outside of play
type Adjustment struct {
	UserID string
	Amount decimal.Decimal
	Type   AdjustmentType
}

// Player returns userID's account, opening it with the starting balance on
// first use. An empty userID selects the demo account.
func (gw *Gateway) Player(ctx context.Context, userID string) (store.Player, error) {
	if strings.TrimSpace(userID) == "" {
		userID = DemoPlayerID
	}
	balance, err := gw.store.EnsurePlayer(ctx, userID, gw.starting)
	if err != nil {
		return store.Player{}, gw.classify(gw.logger, err)
	}
	return store.Player{ID: userID, Balance: balance}, nil
}

// AdjustBalance credits (positive Amount) or debits (negative Amount) an
// existing player. A debit that would leave the balance negative is refused
// with INSUFFICIENT_BALANCE and nothing changes.
func (gw *Gateway) AdjustBalance(ctx context.Context, adj Adjustment) (decimal.Decimal, error) {
	if strings.TrimSpace(adj.UserID) == "" {
		return decimal.Zero, blackjack.ErrMissingField
	}
	if adj.Amount.IsZero() || !adj.Amount.Equal(adj.Amount.Truncate(2)) {
		return decimal.Zero, blackjack.ErrInvalidAmount
	}
	if adj.Type == "" {
		adj.Type = AdjustCorrection
	}

	unlock := gw.locks.Lock("player:" + adj.UserID)
	defer unlock()

	logger := gw.logger.With().
		Str("player_id", adj.UserID).
		Str("type", string(adj.Type)).
		Str("amount", adj.Amount.String()).
		Logger()

	balance, err := gw.store.IncrementBalance(ctx, adj.UserID, adj.Amount)
	if err != nil {
		logger.Debug().Err(err).Msg("Balance adjustment rejected")
		return decimal.Zero, gw.classify(logger, err)
	}
	logger.Info().Str("balance", balance.String()).Msg("Balance adjusted")
	return balance, nil
}

// SetBalance moves the player's balance to target. It is refused while the
// player has a game in progress, since that game's settlement would be
// computed against a stale balance.
func (gw *Gateway) SetBalance(ctx context.Context, userID string, target decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(userID) == "" {
		userID = DemoPlayerID
	}
	if target.IsNegative() || !target.Equal(target.Truncate(2)) {
		return decimal.Zero, blackjack.ErrInvalidAmount
	}

	unlock := gw.locks.Lock("player:" + userID)
	defer unlock()

	logger := gw.logger.With().Str("player_id", userID).Logger()

	current, err := gw.store.EnsurePlayer(ctx, userID, gw.starting)
	if err != nil {
		return decimal.Zero, gw.classify(logger, err)
	}
	if _, err := gw.store.ActiveGame(ctx, userID); err == nil {
		return decimal.Zero, blackjack.ErrActiveGame
	} else if !errors.Is(err, blackjack.ErrGameNotFound) {
		return decimal.Zero, gw.classify(logger, err)
	}

	delta := target.Sub(current)
	if delta.IsZero() {
		return current, nil
	}
	balance, err := gw.store.IncrementBalance(ctx, userID, delta)
	if err != nil {
		return decimal.Zero, gw.classify(logger, err)
	}
	logger.Info().Str("balance", balance.String()).Msg("Balance set")
	return balance, nil
}

// Players lists accounts
func (gw *Gateway) Players(ctx context.Context, q store.PlayerQuery) (*store.PlayerPage, error) {
	page, err := gw.store.Players(ctx, q)
	if err != nil {
		return nil, gw.classify(gw.logger, err)
	}
	return page, nil
}
