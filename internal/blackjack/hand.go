package blackjack

import (
	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/deck"
)

const (
	// BlackjackValue is the best possible hand total.
	BlackjackValue = 21
	// softAceBonus is the difference between an ace counted as 11 and as 1.
	softAceBonus = 10
)

// Ace weights accepted by set_ace_value.
const (
	AceAuto = 0
	AceLow  = 1
	AceHigh = 11
)

// Hand is an evaluated set of cards. The derived fields are recomputed
// whenever the cards change and are never edited directly.
type Hand struct {
	Cards        []deck.Card      `json:"cards"`
	Value        int              `json:"value"`
	IsSoft       bool             `json:"isSoft"`
	IsBust       bool             `json:"isBust"`
	IsBlackjack  bool             `json:"isBlackjack"`
	IsSplittable bool             `json:"isSplittable"`
	CanSurrender bool             `json:"canSurrender"`
	HasSplit     bool             `json:"hasSplit"`
	AceValue     int              `json:"aceValue,omitempty"`
	OriginalBet  *decimal.Decimal `json:"originalBet,omitempty"`
	Stood        bool             `json:"stood,omitempty"`
}

// Evaluate scores cards using the soft-ace rule: every ace starts at 11 and
// is demoted to 1, one at a time, while the total exceeds 21.
func Evaluate(cards []deck.Card, hasSplit bool) Hand {
	return EvaluateWithAce(cards, hasSplit, AceAuto)
}

// EvaluateWithAce scores cards with a caller-chosen ace weight. AceLow counts
// every ace as 1. AceHigh and AceAuto both keep one ace at 11 while that
// stays within 21, which is the best total the cards allow.
func EvaluateWithAce(cards []deck.Card, hasSplit bool, aceValue int) Hand {
	total, softAces := 0, 0
	for _, card := range cards {
		total += card.Value()
		if card.IsAce() {
			softAces++
		}
	}

	if aceValue == AceLow {
		total -= softAces * softAceBonus
		softAces = 0
	}

	for total > BlackjackValue && softAces > 0 {
		total -= softAceBonus
		softAces--
	}

	twoCards := len(cards) == 2
	h := Hand{
		Cards:        append(make([]deck.Card, 0, len(cards)), cards...),
		Value:        total,
		IsSoft:       softAces > 0,
		IsBust:       total > BlackjackValue,
		IsBlackjack:  twoCards && total == BlackjackValue && !hasSplit,
		IsSplittable: twoCards && cards[0].Rank == cards[1].Rank && !hasSplit,
		CanSurrender: twoCards && !hasSplit,
		HasSplit:     hasSplit,
		AceValue:     aceValue,
	}
	return h
}

// HardValue is the total with every ace counted as 1.
func (h Hand) HardValue() int {
	total := 0
	for _, card := range h.Cards {
		if card.IsAce() {
			total++
		} else {
			total += card.Value()
		}
	}
	return total
}

// HasAce reports whether any card in the hand is an ace.
func (h Hand) HasAce() bool {
	for _, card := range h.Cards {
		if card.IsAce() {
			return true
		}
	}
	return false
}

// AceChoiceLive reports whether both ace weights are still playable, i.e.
// the hand holds an ace and counting one of them as 11 does not bust.
func (h Hand) AceChoiceLive() bool {
	return h.HasAce() && h.HardValue()+softAceBonus <= BlackjackValue
}

// Add returns the hand re-evaluated with card appended, keeping the ace
// choice, bet and stand markers.
func (h Hand) Add(card deck.Card) Hand {
	cards := make([]deck.Card, 0, len(h.Cards)+1)
	cards = append(cards, h.Cards...)
	cards = append(cards, card)
	return h.rescore(cards, h.AceValue)
}

// WithAceValue returns the hand re-evaluated under a new ace weight.
func (h Hand) WithAceValue(aceValue int) Hand {
	return h.rescore(h.Cards, aceValue)
}

func (h Hand) rescore(cards []deck.Card, aceValue int) Hand {
	next := EvaluateWithAce(cards, h.HasSplit, aceValue)
	next.OriginalBet = h.OriginalBet
	next.Stood = h.Stood
	return next
}

// Done reports whether a split hand can take no further actions.
func (h Hand) Done() bool {
	return h.Stood || h.IsBust
}

// UpCard returns the dealer's face-up card (the first dealt).
func (h Hand) UpCard() (deck.Card, bool) {
	if len(h.Cards) == 0 {
		return deck.Card{}, false
	}
	return h.Cards[0], true
}

// Visible evaluates only the face-up card, as shown while the hole card is
// still hidden.
func (h Hand) Visible() Hand {
	if len(h.Cards) == 0 {
		return h
	}
	return Evaluate(h.Cards[:1], false)
}

func (h Hand) clone() Hand {
	next := h
	next.Cards = append(make([]deck.Card, 0, len(h.Cards)), h.Cards...)
	if h.OriginalBet != nil {
		bet := *h.OriginalBet
		next.OriginalBet = &bet
	}
	return next
}
