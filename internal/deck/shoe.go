package deck

import (
	"errors"
	rand "math/rand/v2"
)

// ErrShoeEmpty is returned when drawing from an exhausted shoe. Shoes are
// never reshuffled mid-hand.
var ErrShoeEmpty = errors.New("shoe is empty")

// Shoe is the undealt card sequence for a single game. Cards are drawn
// from the end of the slice.
type Shoe struct {
	Cards []Card `json:"cards"`
}

// NewShoe creates a standard 52-card shoe shuffled with rng
func NewShoe(rng *rand.Rand) *Shoe {
	shoe := &Shoe{Cards: make([]Card, 0, len(Suits)*len(Ranks))}
	for _, suit := range Suits {
		for _, rank := range Ranks {
			shoe.Cards = append(shoe.Cards, NewCard(suit, rank))
		}
	}
	shoe.Shuffle(rng)
	return shoe
}

// Stacked builds a shoe whose first draw is cards[0], second is cards[1]
// and so on. Used for rigged deals in tests and replays.
func Stacked(cards ...Card) *Shoe {
	shoe := &Shoe{Cards: make([]Card, len(cards))}
	for i, card := range cards {
		shoe.Cards[len(cards)-1-i] = card
	}
	return shoe
}

// Shuffle randomizes the order of cards in the shoe (Fisher-Yates)
func (s *Shoe) Shuffle(rng *rand.Rand) {
	for i := len(s.Cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		s.Cards[i], s.Cards[j] = s.Cards[j], s.Cards[i]
	}
}

// Draw removes and returns the next card
func (s *Shoe) Draw() (Card, error) {
	if len(s.Cards) == 0 {
		return Card{}, ErrShoeEmpty
	}
	card := s.Cards[len(s.Cards)-1]
	s.Cards = s.Cards[:len(s.Cards)-1]
	return card, nil
}

// Remaining returns the number of undealt cards
func (s *Shoe) Remaining() int {
	return len(s.Cards)
}

// Clone returns an independent copy of the shoe
func (s *Shoe) Clone() *Shoe {
	if s == nil {
		return nil
	}
	return &Shoe{Cards: append([]Card(nil), s.Cards...)}
}
