package blackjack

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lox/blackjack/internal/deck"
)

func playDealer(t *testing.T, dealer, shoe string, player int, r *scriptedRolls) (Hand, *deck.Shoe) {
	t.Helper()
	s := deck.Stacked(cards(shoe)...)
	h := NewDealerPolicy(r).Play(Evaluate(cards(dealer), false), s, player)
	return h, s
}

func TestDealerDrawsBelowSeventeen(t *testing.T) {
	h, _ := playDealer(t, "10h 2s", "3d 4c 9h", 18, rolls(t))
	assert.Equal(t, 19, h.Value)
	assert.Len(t, h.Cards, 4)
}

func TestDealerStandsOnSeventeenWithoutDeviation(t *testing.T) {
	// player below 20: no roll at all
	h, s := playDealer(t, "10h 7s", "5d", 19, rolls(t))
	assert.Equal(t, 17, h.Value)
	assert.Equal(t, 1, s.Remaining())

	// soft 17 also stands
	h, _ = playDealer(t, "Ah 6s", "5d", 18, rolls(t))
	assert.Equal(t, 17, h.Value)
}

func TestDealerSeventeenDeviation(t *testing.T) {
	t.Run("roll under 0.30 draws", func(t *testing.T) {
		r := rolls(t, 0.29)
		h, _ := playDealer(t, "10h 7s", "3d", 20, r)
		assert.Equal(t, 20, h.Value)
		assert.Equal(t, 1, r.calls)
	})

	t.Run("roll at 0.30 stands", func(t *testing.T) {
		r := rolls(t, 0.30)
		h, _ := playDealer(t, "10h 7s", "3d", 20, r)
		assert.Equal(t, 17, h.Value)
	})

	t.Run("player at 19 never triggers", func(t *testing.T) {
		h, _ := playDealer(t, "10h 7s", "3d", 19, rolls(t))
		assert.Equal(t, 17, h.Value)
	})
}

func TestDealerEighteenDeviation(t *testing.T) {
	t.Run("roll under 0.15 draws", func(t *testing.T) {
		r := rolls(t, 0.14)
		h, _ := playDealer(t, "10h 8s", "2d", 19, r)
		assert.Equal(t, 20, h.Value)
		assert.Equal(t, 1, r.calls)
	})

	t.Run("roll at 0.15 stands", func(t *testing.T) {
		h, _ := playDealer(t, "10h 8s", "2d", 21, rolls(t, 0.15))
		assert.Equal(t, 18, h.Value)
	})

	t.Run("player at 18 never triggers", func(t *testing.T) {
		h, _ := playDealer(t, "10h 8s", "2d", 18, rolls(t))
		assert.Equal(t, 18, h.Value)
	})
}

func TestDealerDeviationsFireOncePerPlay(t *testing.T) {
	// 17 draws an ace to 18, the 18 check rolls once and stands
	r := rolls(t, 0.0, 0.99)
	h, _ := playDealer(t, "10h 7s", "Ad 2c", 20, r)
	assert.Equal(t, 18, h.Value)
	assert.Equal(t, 2, r.calls)

	// soft 17 draws a ten back to hard 17, the 17 check has been used
	r = rolls(t, 0.0)
	h, _ = playDealer(t, "Ah 6s", "10d 2c", 20, r)
	assert.Equal(t, 17, h.Value)
	assert.Equal(t, 1, r.calls)

	// a second eighteen does not roll again
	r = rolls(t, 0.0)
	h, _ = playDealer(t, "Ah 7s", "10d 5c", 19, r)
	assert.Equal(t, 18, h.Value)
	assert.Equal(t, 1, r.calls)
}

func TestDealerStopsOnEmptyShoe(t *testing.T) {
	h, s := playDealer(t, "2h 3s", "4d", 20, rolls(t))
	assert.Equal(t, 9, h.Value)
	assert.Equal(t, 0, s.Remaining())

	h, _ = playDealer(t, "10h 7s", "", 20, rolls(t, 0.0))
	assert.Equal(t, 17, h.Value)
}
