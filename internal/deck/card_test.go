package deck

import (
	"encoding/json"
	"testing"

	"github.com/lox/blackjack/internal/randutil"
)

func TestParseCards(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Card
		wantErr  bool
	}{
		{
			name:  "ace king",
			input: "As Kh",
			expected: []Card{
				{Suit: Spades, Rank: Ace},
				{Suit: Hearts, Rank: King},
			},
		},
		{
			name:  "ten both spellings",
			input: "Td 10c",
			expected: []Card{
				{Suit: Diamonds, Rank: Ten},
				{Suit: Clubs, Rank: Ten},
			},
		},
		{
			name:  "case insensitive",
			input: "aS qD 9c",
			expected: []Card{
				{Suit: Spades, Rank: Ace},
				{Suit: Diamonds, Rank: Queen},
				{Suit: Clubs, Rank: Nine},
			},
		},
		{
			name:    "invalid rank",
			input:   "Xs",
			wantErr: true,
		},
		{
			name:    "invalid suit",
			input:   "Ax",
			wantErr: true,
		},
		{
			name:    "one is not a rank",
			input:   "1s",
			wantErr: true,
		},
		{
			name:     "empty string",
			input:    "",
			expected: []Card{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCards(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCards() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !cardsEqual(got, tt.expected) {
				t.Errorf("ParseCards() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMustParseCardsPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustParseCards() should panic on invalid input")
		}
	}()
	MustParseCards("invalid")
}

func TestRankValue(t *testing.T) {
	expected := map[Rank]int{
		Ace: 11, Two: 2, Five: 5, Nine: 9, Ten: 10, Jack: 10, Queen: 10, King: 10,
	}
	for rank, want := range expected {
		if got := rank.Value(); got != want {
			t.Errorf("%s.Value() = %d, want %d", rank, got, want)
		}
	}
}

func TestCardJSON(t *testing.T) {
	card := NewCard(Hearts, Ten)
	data, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"suit":"hearts","rank":"10"}` {
		t.Errorf("unexpected JSON %s", data)
	}

	var decoded Card
	if err := json.Unmarshal([]byte(`{"suit":"spades","rank":"A"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != NewCard(Spades, Ace) {
		t.Errorf("decoded %v, want A♠", decoded)
	}
}

func TestNewShoe(t *testing.T) {
	shoe := NewShoe(randutil.New(42))
	if shoe.Remaining() != 52 {
		t.Fatalf("expected 52 cards, got %d", shoe.Remaining())
	}

	seen := make(map[Card]bool)
	for shoe.Remaining() > 0 {
		card, err := shoe.Draw()
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if seen[card] {
			t.Fatalf("duplicate card %v", card)
		}
		seen[card] = true
	}

	if _, err := shoe.Draw(); err != ErrShoeEmpty {
		t.Errorf("expected ErrShoeEmpty, got %v", err)
	}
}

func TestShoeDeterministicWithSeed(t *testing.T) {
	a := NewShoe(randutil.New(7))
	b := NewShoe(randutil.New(7))
	if !cardsEqual(a.Cards, b.Cards) {
		t.Error("same seed should produce the same order")
	}
}

func TestStackedDrawOrder(t *testing.T) {
	shoe := Stacked(MustParseCards("As Kd 9c")...)
	for _, want := range MustParseCards("As Kd 9c") {
		got, err := shoe.Draw()
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if got != want {
			t.Errorf("drew %v, want %v", got, want)
		}
	}
}

func TestShoeClone(t *testing.T) {
	shoe := Stacked(MustParseCards("As Kd")...)
	clone := shoe.Clone()
	_, _ = clone.Draw()
	if shoe.Remaining() != 2 {
		t.Errorf("clone draw affected original: %d remaining", shoe.Remaining())
	}
}

func cardsEqual(a, b []Card) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Rank != b[i].Rank || a[i].Suit != b[i].Suit {
			return false
		}
	}
	return true
}
