package blackjack

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/deck"
)

// HandView is a hand as shown to the player
type HandView struct {
	Cards       []deck.Card      `json:"cards"`
	Value       int              `json:"value"`
	IsSoft      bool             `json:"isSoft"`
	IsBust      bool             `json:"isBust"`
	IsBlackjack bool             `json:"isBlackjack"`
	HiddenCards int              `json:"hiddenCards,omitempty"`
	Stood       bool             `json:"stood,omitempty"`
	Bet         *decimal.Decimal `json:"bet,omitempty"`
	Result      Result           `json:"result,omitempty"`
}

// View is the public projection of a game. The shoe and the dealer's hole
// card never leave the server while the game is in play.
type View struct {
	ID               string           `json:"id"`
	PlayerID         string           `json:"playerId"`
	State            State            `json:"state"`
	BetAmount        decimal.Decimal  `json:"betAmount"`
	CurrentBet       decimal.Decimal  `json:"currentBet"`
	PlayerHand       HandView         `json:"playerHand"`
	DealerHand       HandView         `json:"dealerHand"`
	SplitHands       []HandView       `json:"splitHands,omitempty"`
	InsuranceBet     decimal.Decimal  `json:"insuranceBet"`
	HasInsurance     bool             `json:"hasInsurance"`
	HasSplit         bool             `json:"hasSplit"`
	HasSurrendered   bool             `json:"hasSurrendered"`
	Result           Result           `json:"result,omitempty"`
	WinAmount        *decimal.Decimal `json:"winAmount,omitempty"`
	InsuranceWin     *decimal.Decimal `json:"insuranceWin,omitempty"`
	NetProfit        *decimal.Decimal `json:"netProfit,omitempty"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
	AvailableActions []Action         `json:"availableActions"`
	Version          int64            `json:"version"`
	CreatedAt        time.Time        `json:"createdAt"`
	EndedAt          *time.Time       `json:"endedAt,omitempty"`
}

// NewView projects g for its owner. balance may be nil when unknown; the
// available actions are then computed against an empty wallet.
func NewView(g *Game, balance *decimal.Decimal) *View {
	v := &View{
		ID:             g.ID,
		PlayerID:       g.PlayerID,
		State:          g.State,
		BetAmount:      g.BetAmount,
		CurrentBet:     g.CurrentBet,
		PlayerHand:     handView(g.PlayerHand),
		InsuranceBet:   g.InsuranceBet,
		HasInsurance:   g.HasInsurance,
		HasSplit:       g.HasSplit,
		HasSurrendered: g.HasSurrendered,
		Balance:        balance,
		Version:        g.Version,
		CreatedAt:      g.CreatedAt,
		EndedAt:        g.EndedAt,
	}

	if g.State.IsTerminal() {
		v.DealerHand = handView(g.DealerHand)
		v.Result = g.Result
		win, ins, net := g.WinAmount, g.InsuranceWin, g.NetProfit
		v.WinAmount, v.InsuranceWin, v.NetProfit = &win, &ins, &net
	} else {
		v.DealerHand = handView(g.DealerHand.Visible())
		v.DealerHand.HiddenCards = len(g.DealerHand.Cards) - len(v.DealerHand.Cards)
	}

	for i, h := range g.SplitHands {
		hv := handView(h)
		if i < len(g.SplitResults) {
			hv.Result = g.SplitResults[i]
		}
		v.SplitHands = append(v.SplitHands, hv)
	}

	avail := decimal.Zero
	if balance != nil {
		avail = *balance
	}
	v.AvailableActions = AvailableActions(g, avail)
	if v.AvailableActions == nil {
		v.AvailableActions = []Action{}
	}
	return v
}

func handView(h Hand) HandView {
	return HandView{
		Cards:       append(make([]deck.Card, 0, len(h.Cards)), h.Cards...),
		Value:       h.Value,
		IsSoft:      h.IsSoft,
		IsBust:      h.IsBust,
		IsBlackjack: h.IsBlackjack,
		Stood:       h.Stood,
		Bet:         h.OriginalBet,
	}
}
