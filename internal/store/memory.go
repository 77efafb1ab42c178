package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
)

// Memory is an in-process Store for tests and single-node development.
// Games are cloned on the way in and out so callers never share state.
type Memory struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	games    map[string]*blackjack.Game
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]decimal.Decimal),
		games:    make(map[string]*blackjack.Game),
	}
}

func (m *Memory) EnsurePlayer(_ context.Context, playerID string, starting decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[playerID]; ok {
		return b, nil
	}
	m.balances[playerID] = starting
	return starting, nil
}

func (m *Memory) Balance(_ context.Context, playerID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[playerID]
	if !ok {
		return decimal.Zero, blackjack.ErrPlayerNotFound
	}
	return b, nil
}

func (m *Memory) IncrementBalance(_ context.Context, playerID string, delta decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyDelta(playerID, delta)
}

func (m *Memory) applyDelta(playerID string, delta decimal.Decimal) (decimal.Decimal, error) {
	b, ok := m.balances[playerID]
	if !ok {
		return decimal.Zero, blackjack.ErrPlayerNotFound
	}
	next := b.Add(delta)
	if next.IsNegative() {
		return b, blackjack.ErrInsufficientBalance
	}
	m.balances[playerID] = next
	return next, nil
}

func (m *Memory) GetGame(_ context.Context, gameID string) (*blackjack.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, blackjack.ErrGameNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) ActiveGame(_ context.Context, playerID string) (*blackjack.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.activeLocked(playerID); g != nil {
		return g.Clone(), nil
	}
	return nil, blackjack.ErrGameNotFound
}

func (m *Memory) activeLocked(playerID string) *blackjack.Game {
	for _, g := range m.games {
		if g.PlayerID == playerID && g.State == blackjack.StatePlaying {
			return g
		}
	}
	return nil
}

func (m *Memory) CreateGame(_ context.Context, g *blackjack.Game, stakeDelta decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[g.ID]; ok {
		return decimal.Zero, blackjack.ErrStaleGame
	}
	if g.State == blackjack.StatePlaying && m.activeLocked(g.PlayerID) != nil {
		return decimal.Zero, blackjack.ErrActiveGame
	}
	balance, err := m.applyDelta(g.PlayerID, stakeDelta)
	if err != nil {
		return decimal.Zero, err
	}
	m.games[g.ID] = g.Clone()
	return balance, nil
}

func (m *Memory) CommitGame(_ context.Context, c Commit) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.games[c.Game.ID]
	if !ok {
		return decimal.Zero, blackjack.ErrGameNotFound
	}
	if current.State != c.ExpectedState || current.Version != c.ExpectedVersion {
		return decimal.Zero, blackjack.ErrStaleGame
	}
	balance, err := m.applyDelta(c.Game.PlayerID, c.BalanceDelta)
	if err != nil {
		return decimal.Zero, err
	}
	m.games[c.Game.ID] = c.Game.Clone()
	return balance, nil
}

func (m *Memory) History(_ context.Context, q HistoryQuery) (*HistoryPage, error) {
	q = q.normalize()

	m.mu.Lock()
	var matched []*blackjack.Game
	stats := newStats()
	for _, g := range m.games {
		if (HistoryQuery{PlayerID: q.PlayerID}).matches(g) {
			stats.add(g.Result, wagered(g), g.NetProfit)
		}
		if q.matches(g) {
			matched = append(matched, g.Clone())
		}
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := &HistoryPage{Stats: stats, Total: len(matched), Limit: q.Limit, Offset: q.Offset, Games: []*blackjack.Game{}}
	if q.Offset < len(matched) {
		end := min(q.Offset+q.Limit, len(matched))
		page.Games = matched[q.Offset:end]
	}
	return page, nil
}

func (m *Memory) Players(_ context.Context, q PlayerQuery) (*PlayerPage, error) {
	q = q.normalize()

	m.mu.Lock()
	players := make([]Player, 0, len(m.balances))
	for id, b := range m.balances {
		players = append(players, Player{ID: id, Balance: b})
	}
	m.mu.Unlock()

	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })

	page := &PlayerPage{Total: len(players), Limit: q.Limit, Offset: q.Offset, Players: []Player{}}
	if q.Offset < len(players) {
		page.Players = players[q.Offset:min(q.Offset+q.Limit, len(players))]
	}
	return page, nil
}

func (m *Memory) Close() error {
	return nil
}
