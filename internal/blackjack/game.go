package blackjack

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/deck"
)

// State is a game's lifecycle position. It only moves forward.
type State string

const (
	StateBetting     State = "BETTING"
	StatePlaying     State = "PLAYING"
	StateEnded       State = "ENDED"
	StateSurrendered State = "SURRENDERED"
)

// IsTerminal reports whether the game is settled and immutable
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateSurrendered
}

// Game is one round for one player, from bet to settlement. Terminal games
// are kept as settlement records and never modified again.
type Game struct {
	ID         string          `json:"id"`
	PlayerID   string          `json:"playerId"`
	BetAmount  decimal.Decimal `json:"betAmount"`
	CurrentBet decimal.Decimal `json:"currentBet"`
	State      State           `json:"state"`

	PlayerHand Hand   `json:"playerHand"`
	DealerHand Hand   `json:"dealerHand"`
	SplitHands []Hand `json:"splitHands,omitempty"`

	InsuranceBet   decimal.Decimal `json:"insuranceBet"`
	HasSplit       bool            `json:"hasSplit"`
	HasSurrendered bool            `json:"hasSurrendered"`
	HasInsurance   bool            `json:"hasInsurance"`

	Result       Result          `json:"result,omitempty"`
	SplitResults []Result        `json:"splitResults,omitempty"`
	WinAmount    decimal.Decimal `json:"winAmount"`
	InsuranceWin decimal.Decimal `json:"insuranceWin"`
	NetProfit    decimal.Decimal `json:"netProfit"`

	Shoe *deck.Shoe `json:"shoe"`

	// Version increments on every committed change and guards conditional
	// updates alongside State.
	Version       int64  `json:"version"`
	LastRequestID string `json:"lastRequestId,omitempty"`
	LastAction    Action `json:"lastAction,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// NewGame creates a game in the BETTING state
func NewGame(id, playerID string, bet decimal.Decimal, shoe *deck.Shoe, now time.Time) *Game {
	return &Game{
		ID:           id,
		PlayerID:     playerID,
		BetAmount:    bet,
		CurrentBet:   bet,
		State:        StateBetting,
		PlayerHand:   Evaluate(nil, false),
		DealerHand:   Evaluate(nil, false),
		InsuranceBet: decimal.Zero,
		WinAmount:    decimal.Zero,
		InsuranceWin: decimal.Zero,
		NetProfit:    decimal.Zero,
		Shoe:         shoe,
		CreatedAt:    now,
	}
}

// ValidateBet checks a stake is positive with at most two decimal places.
func ValidateBet(bet decimal.Decimal) error {
	if !bet.IsPositive() || !bet.Equal(bet.Truncate(2)) {
		return ErrInvalidBet
	}
	return nil
}

// Clone returns a deep copy of the game
func (g *Game) Clone() *Game {
	next := *g
	next.PlayerHand = g.PlayerHand.clone()
	next.DealerHand = g.DealerHand.clone()
	if g.SplitHands != nil {
		next.SplitHands = make([]Hand, len(g.SplitHands))
		for i, h := range g.SplitHands {
			next.SplitHands[i] = h.clone()
		}
	}
	if g.SplitResults != nil {
		next.SplitResults = append([]Result(nil), g.SplitResults...)
	}
	next.Shoe = g.Shoe.Clone()
	if g.EndedAt != nil {
		ended := *g.EndedAt
		next.EndedAt = &ended
	}
	return &next
}

// ActiveHand is the hand single-hand actions address
func (g *Game) ActiveHand() Hand {
	return g.PlayerHand
}

// PlayerValueHint is the value the dealer plays against: the main hand, or
// the best standing split hand.
func (g *Game) PlayerValueHint() int {
	if !g.HasSplit {
		return g.PlayerHand.Value
	}
	best := 0
	for _, h := range g.SplitHands {
		if !h.IsBust && h.Value > best {
			best = h.Value
		}
	}
	return best
}

func (g *Game) allSplitHandsDone() bool {
	for _, h := range g.SplitHands {
		if !h.Done() {
			return false
		}
	}
	return true
}

func (g *Game) allSplitHandsBust() bool {
	for _, h := range g.SplitHands {
		if !h.IsBust {
			return false
		}
	}
	return true
}
