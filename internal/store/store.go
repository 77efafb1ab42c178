// Package store persists games and player balances. Every write that moves
// money commits the balance change and the game row in one transaction.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
)

// Store is the persistence collaborator used by the gateway.
type Store interface {
	// EnsurePlayer creates the player with starting balance if missing and
	// returns the current balance.
	EnsurePlayer(ctx context.Context, playerID string, starting decimal.Decimal) (decimal.Decimal, error)
	Balance(ctx context.Context, playerID string) (decimal.Decimal, error)
	// IncrementBalance adds delta, failing with ErrInsufficientBalance when
	// the result would be negative.
	IncrementBalance(ctx context.Context, playerID string, delta decimal.Decimal) (decimal.Decimal, error)

	GetGame(ctx context.Context, gameID string) (*blackjack.Game, error)
	// ActiveGame returns the player's game in PLAYING, or ErrGameNotFound.
	ActiveGame(ctx context.Context, playerID string) (*blackjack.Game, error)
	// CreateGame inserts a freshly dealt game and applies stakeDelta to the
	// owner's balance atomically.
	CreateGame(ctx context.Context, g *blackjack.Game, stakeDelta decimal.Decimal) (decimal.Decimal, error)
	// CommitGame replaces a game only if it is still at the expected state
	// and version, applying the balance delta in the same transaction.
	CommitGame(ctx context.Context, c Commit) (decimal.Decimal, error)
	History(ctx context.Context, q HistoryQuery) (*HistoryPage, error)
	// Players lists accounts ordered by ID.
	Players(ctx context.Context, q PlayerQuery) (*PlayerPage, error)

	Close() error
}

// Commit is a conditional game update
type Commit struct {
	Game            *blackjack.Game
	ExpectedState   blackjack.State
	ExpectedVersion int64
	BalanceDelta    decimal.Decimal
}

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// HistoryQuery filters settled games. Empty PlayerID and Result match all.
type HistoryQuery struct {
	PlayerID string
	Result   blackjack.Result
	Limit    int
	Offset   int
}

// ParseResultFilter accepts a result name in any case, or "all".
func ParseResultFilter(s string) (blackjack.Result, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "ALL" {
		return "", nil
	}
	r := blackjack.Result(s)
	switch r {
	case blackjack.ResultWin, blackjack.ResultLose, blackjack.ResultPush,
		blackjack.ResultBlackjack, blackjack.ResultSurrender:
		return r, nil
	}
	return "", fmt.Errorf("unknown result filter %q", s)
}

func (q HistoryQuery) normalize() HistoryQuery {
	q.Limit, q.Offset = bounds(q.Limit, q.Offset)
	return q
}

func bounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return limit, max(offset, 0)
}

// Player is an account and its balance
type Player struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

// PlayerQuery pages through accounts; limits match history paging.
type PlayerQuery struct {
	Limit  int
	Offset int
}

func (q PlayerQuery) normalize() PlayerQuery {
	q.Limit, q.Offset = bounds(q.Limit, q.Offset)
	return q
}

// PlayerPage is one page of accounts
type PlayerPage struct {
	Players []Player
	Total   int
	Limit   int
	Offset  int
}

func (q HistoryQuery) matches(g *blackjack.Game) bool {
	if !g.State.IsTerminal() {
		return false
	}
	if q.PlayerID != "" && g.PlayerID != q.PlayerID {
		return false
	}
	return q.Result == "" || g.Result == q.Result
}

// HistoryPage is one page of settled games, newest first, with aggregate
// stats over every settled game of the query's player.
type HistoryPage struct {
	Games  []*blackjack.Game
	Stats  Stats
	Total  int
	Limit  int
	Offset int
}

// Stats aggregates settled games
type Stats struct {
	TotalGames   int             `json:"totalGames"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	Pushes       int             `json:"pushes"`
	Blackjacks   int             `json:"blackjacks"`
	Surrenders   int             `json:"surrenders"`
	TotalWagered decimal.Decimal `json:"totalWagered"`
	NetProfit    decimal.Decimal `json:"netProfit"`
}

func newStats() Stats {
	return Stats{TotalWagered: decimal.Zero, NetProfit: decimal.Zero}
}

func (s *Stats) add(result blackjack.Result, wagered, net decimal.Decimal) {
	s.TotalGames++
	switch result {
	case blackjack.ResultWin:
		s.Wins++
	case blackjack.ResultLose:
		s.Losses++
	case blackjack.ResultPush:
		s.Pushes++
	case blackjack.ResultBlackjack:
		s.Blackjacks++
	case blackjack.ResultSurrender:
		s.Surrenders++
	}
	s.TotalWagered = s.TotalWagered.Add(wagered)
	s.NetProfit = s.NetProfit.Add(net)
}

// WinRate is the share of games won outright or by blackjack
func (s Stats) WinRate() float64 {
	if s.TotalGames == 0 {
		return 0
	}
	return float64(s.Wins+s.Blackjacks) / float64(s.TotalGames)
}

// record is the row form of a game shared by the SQL stores. The full game
// is kept as JSON; the other columns exist for filtering and stats.
type record struct {
	ID        string
	PlayerID  string
	State     string
	Version   int64
	Result    string
	Wagered   string
	NetProfit string
	Data      []byte
	CreatedAt time.Time
	EndedAt   *time.Time
}

func encodeGame(g *blackjack.Game) (record, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return record{}, fmt.Errorf("encode game %s: %w", g.ID, err)
	}
	return record{
		ID:        g.ID,
		PlayerID:  g.PlayerID,
		State:     string(g.State),
		Version:   g.Version,
		Result:    string(g.Result),
		Wagered:   wagered(g).String(),
		NetProfit: g.NetProfit.String(),
		Data:      data,
		CreatedAt: g.CreatedAt.UTC(),
		EndedAt:   g.EndedAt,
	}, nil
}

func decodeGame(data []byte) (*blackjack.Game, error) {
	var g blackjack.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	return &g, nil
}

func wagered(g *blackjack.Game) decimal.Decimal {
	return g.CurrentBet.Add(g.InsuranceBet)
}
