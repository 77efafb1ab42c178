package blackjack

import (
	"testing"

	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjack/internal/deck"
)

// scriptedRolls returns the given values in order and fails the test if the
// dealer rolls more often than expected.
type scriptedRolls struct {
	t      *testing.T
	values []float64
	calls  int
}

func rolls(t *testing.T, values ...float64) *scriptedRolls {
	return &scriptedRolls{t: t, values: values}
}

func (r *scriptedRolls) Float64() float64 {
	r.t.Helper()
	if r.calls >= len(r.values) {
		r.t.Fatalf("unexpected dealer roll #%d", r.calls+1)
	}
	v := r.values[r.calls]
	r.calls++
	return v
}

func cards(s string) []deck.Card {
	return deck.MustParseCards(s)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// dealt deals a game from a stacked shoe. The shoe lists cards in draw
// order: player, dealer, player, dealer, then any later draws.
func dealt(t *testing.T, shoe string, bet, balance string, r Probability) (*Processor, *Game, *Wallet) {
	t.Helper()
	clock := quartz.NewMock(t)
	proc := NewProcessor(NewDealerPolicy(r), clock)
	wallet := NewWallet(dec(balance))
	g := NewGame("g1", "p1", dec(bet), deck.Stacked(cards(shoe)...), clock.Now())
	g, err := proc.Deal(g, wallet)
	require.NoError(t, err)
	return proc, g, wallet
}

func intp(v int) *int {
	return &v
}
