package blackjack

import "github.com/lox/blackjack/internal/deck"

// Dealer draw thresholds. The two deviations above 17 are part of the
// game's payout balance and must not change without sign-off.
const (
	DealerStandValue = 17

	Deviation17Value     = 17
	Deviation17PlayerMin = 20
	Deviation17Chance    = 0.30

	Deviation18Value     = 18
	Deviation18PlayerMin = 19
	Deviation18Chance    = 0.15
)

// Probability supplies uniform floats in [0, 1). *rand.Rand satisfies it.
type Probability interface {
	Float64() float64
}

// DealerPolicy decides when the dealer draws
type DealerPolicy struct {
	rng Probability
}

// NewDealerPolicy creates a policy drawing its deviation rolls from rng
func NewDealerPolicy(rng Probability) *DealerPolicy {
	return &DealerPolicy{rng: rng}
}

// Play draws cards from shoe into dealer until the dealer stands and returns
// the final hand. The dealer always draws below 17. At 17 against a player
// holding 20 or more it draws once more with probability 0.30; at 18
// against 19 or more, with probability 0.15. Each deviation is rolled at
// most once per call. Play stops quietly when the shoe runs out.
func (p *DealerPolicy) Play(dealer Hand, shoe *deck.Shoe, playerValue int) Hand {
	rolled17, rolled18 := false, false

	for {
		draw := false
		switch {
		case dealer.Value < DealerStandValue:
			draw = true
		case dealer.Value == Deviation17Value && playerValue >= Deviation17PlayerMin && !rolled17:
			rolled17 = true
			draw = p.rng.Float64() < Deviation17Chance
		case dealer.Value == Deviation18Value && playerValue >= Deviation18PlayerMin && !rolled18:
			rolled18 = true
			draw = p.rng.Float64() < Deviation18Chance
		}
		if !draw {
			return dealer
		}

		card, err := shoe.Draw()
		if err != nil {
			return dealer
		}
		dealer = dealer.Add(card)
	}
}
