package deck

import (
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// Suits lists every suit in shoe-building order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// String returns the lowercase suit name used on the wire
func (s Suit) String() string {
	switch s {
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	case Spades:
		return "spades"
	default:
		return "?"
	}
}

// Symbol returns the unicode glyph for the suit
func (s Suit) Symbol() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

func (s Suit) MarshalText() ([]byte, error) {
	if s < Hearts || s > Spades {
		return nil, fmt.Errorf("invalid suit %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Suit) UnmarshalText(text []byte) error {
	parsed, err := ParseSuit(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSuit accepts either the full suit name or its single-letter code.
func ParseSuit(str string) (Suit, error) {
	switch strings.ToLower(str) {
	case "hearts", "h":
		return Hearts, nil
	case "diamonds", "d":
		return Diamonds, nil
	case "clubs", "c":
		return Clubs, nil
	case "spades", "s":
		return Spades, nil
	}
	return 0, fmt.Errorf("invalid suit %q", str)
}

// Rank represents a card rank
type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// Ranks lists every rank in shoe-building order.
var Ranks = []Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

// String returns the rank label ("A", "2".."10", "J", "Q", "K")
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	}
	if r >= Two && r <= Ten {
		return fmt.Sprintf("%d", int(r))
	}
	return "?"
}

// Value returns the base blackjack value: aces 11, faces 10, else pip count.
func (r Rank) Value() int {
	switch {
	case r == Ace:
		return 11
	case r >= Ten:
		return 10
	default:
		return int(r)
	}
}

func (r Rank) MarshalText() ([]byte, error) {
	if r < Ace || r > King {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRank parses a rank label; "T" is accepted for ten.
func ParseRank(str string) (Rank, error) {
	switch strings.ToUpper(str) {
	case "A":
		return Ace, nil
	case "T", "10":
		return Ten, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	}
	if len(str) == 1 && str[0] >= '2' && str[0] <= '9' {
		return Rank(str[0] - '0'), nil
	}
	return 0, fmt.Errorf("invalid rank %q", str)
}

// Card represents a playing card
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// String returns the short form of the card, e.g. "A♠" or "10♥"
func (c Card) String() string {
	return c.Rank.String() + c.Suit.Symbol()
}

// Value returns the base blackjack value of the card
func (c Card) Value() int {
	return c.Rank.Value()
}

// IsAce returns true if the card is an Ace
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// ParseCard parses a rank followed by a suit letter: "As", "Th", "10d".
func ParseCard(str string) (Card, error) {
	if len(str) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", str)
	}
	rank, err := ParseRank(str[:len(str)-1])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", str, err)
	}
	suit, err := ParseSuit(str[len(str)-1:])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", str, err)
	}
	return NewCard(suit, rank), nil
}

// ParseCards parses a whitespace separated list of cards ("As Kh 10d").
func ParseCards(str string) ([]Card, error) {
	fields := strings.Fields(str)
	cards := make([]Card, 0, len(fields))
	for _, field := range fields {
		card, err := ParseCard(field)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// MustParseCards is ParseCards for tests and fixtures; it panics on bad input.
func MustParseCards(str string) []Card {
	cards, err := ParseCards(str)
	if err != nil {
		panic(err)
	}
	return cards
}
