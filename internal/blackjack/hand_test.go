package blackjack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		cards      string
		hasSplit   bool
		value      int
		soft       bool
		bust       bool
		blackjack  bool
		splittable bool
	}{
		{name: "pair of aces", cards: "Ah As", value: 12, soft: true, splittable: true},
		{name: "natural", cards: "Ah Ks", value: 21, soft: true, blackjack: true},
		{name: "split ace king is not blackjack", cards: "Ah Ks", hasSplit: true, value: 21, soft: true},
		{name: "soft 17", cards: "Ah 6s", value: 17, soft: true},
		{name: "bust rescue", cards: "Ah 5s 8d", value: 14},
		{name: "three card 21", cards: "7h 7s 7d", value: 21},
		{name: "bust", cards: "10h 5s 8d", value: 23, bust: true},
		{name: "two aces and nine", cards: "Ah Ad 9c", value: 21, soft: true},
		{name: "four aces", cards: "Ah Ad Ac As", value: 14, soft: true},
		{name: "ten and king are not a pair", cards: "10h Ks", value: 20},
		{name: "eights", cards: "8h 8d", value: 16, splittable: true},
		{name: "split eights not resplittable", cards: "8h 8d", hasSplit: true, value: 16},
		{name: "empty", cards: "", value: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Evaluate(cards(tt.cards), tt.hasSplit)
			assert.Equal(t, tt.value, h.Value)
			assert.Equal(t, tt.soft, h.IsSoft, "soft")
			assert.Equal(t, tt.bust, h.IsBust, "bust")
			assert.Equal(t, tt.blackjack, h.IsBlackjack, "blackjack")
			assert.Equal(t, tt.splittable, h.IsSplittable, "splittable")
			assert.Equal(t, tt.hasSplit, h.HasSplit)
		})
	}
}

func TestEvaluateCanSurrender(t *testing.T) {
	assert.True(t, Evaluate(cards("10h 6s"), false).CanSurrender)
	assert.False(t, Evaluate(cards("10h 6s"), true).CanSurrender)
	assert.False(t, Evaluate(cards("10h 3s 3d"), false).CanSurrender)
}

func TestEvaluateWithAce(t *testing.T) {
	low := EvaluateWithAce(cards("Ah 6s"), false, AceLow)
	assert.Equal(t, 7, low.Value)
	assert.False(t, low.IsSoft)

	high := EvaluateWithAce(cards("Ah 6s"), false, AceHigh)
	assert.Equal(t, 17, high.Value)

	natural := EvaluateWithAce(cards("Ah Ks"), false, AceLow)
	assert.Equal(t, 11, natural.Value)
	assert.False(t, natural.IsBlackjack)

	// an 11 that would bust is demoted
	busting := EvaluateWithAce(cards("Ah 6s 9d"), false, AceHigh)
	assert.Equal(t, 16, busting.Value)
}

func TestHandAddKeepsChoice(t *testing.T) {
	bet := dec("25")
	h := EvaluateWithAce(cards("Ah 2s"), true, AceLow)
	h.OriginalBet = &bet

	next := h.Add(cards("5d")[0])
	assert.Equal(t, 8, next.Value)
	assert.Equal(t, AceLow, next.AceValue)
	assert.True(t, next.HasSplit)
	assert.Equal(t, "25", next.OriginalBet.String())
	assert.Len(t, h.Cards, 2, "Add must not mutate the receiver")
}

func TestAceChoiceLive(t *testing.T) {
	assert.True(t, Evaluate(cards("Ah 5s"), false).AceChoiceLive())
	assert.True(t, Evaluate(cards("Ah Ks"), false).AceChoiceLive())
	assert.False(t, Evaluate(cards("Ah 5s 9d"), false).AceChoiceLive())
	assert.False(t, Evaluate(cards("9h 5s"), false).AceChoiceLive())
}

func TestVisibleDealerHand(t *testing.T) {
	dealer := Evaluate(cards("Ah Ks"), false)
	visible := dealer.Visible()
	assert.Len(t, visible.Cards, 1)
	assert.Equal(t, 11, visible.Value)
	assert.False(t, visible.IsBlackjack)

	up, ok := dealer.UpCard()
	assert.True(t, ok)
	assert.True(t, up.IsAce())
}
