// Package gameid generates sortable, URL-safe game identifiers.
package gameid

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length is the number of characters in an encoded game ID.
const Length = 26

// Generator produces game IDs from UUIDv7 values
type Generator struct {
	random io.Reader
}

// NewGenerator creates a generator. A nil reader uses crypto/rand.
func NewGenerator(random io.Reader) *Generator {
	return &Generator{random: random}
}

// Generate creates a new game ID using UUIDv7 encoded as 26-character base32 string
func Generate() string {
	id, err := NewGenerator(nil).Generate()
	if err != nil {
		panic("failed to generate game id: " + err.Error())
	}
	return id
}

// Generate creates a new game ID using the generator's random source
func (g *Generator) Generate() (string, error) {
	var (
		u   uuid.UUID
		err error
	)
	if g.random != nil {
		u, err = uuid.NewV7FromReader(g.random)
	} else {
		u, err = uuid.NewV7()
	}
	if err != nil {
		return "", fmt.Errorf("generate uuidv7: %w", err)
	}
	return encodeBase32(u), nil
}

// encodeBase32 encodes the 128-bit value as 130 bits with two leading zero
// bits, five bits per character, so the first character is always 0-7.
func encodeBase32(data [16]byte) string {
	bit := func(pos int) byte {
		if pos < 0 {
			return 0
		}
		return (data[pos/8] >> (7 - pos%8)) & 1
	}

	result := make([]byte, Length)
	for i := 0; i < Length; i++ {
		start := i*5 - 2
		var value byte
		for j := 0; j < 5; j++ {
			value = value<<1 | bit(start+j)
		}
		result[i] = alphabet[value]
	}
	return string(result)
}

// Validate checks if a game ID is valid (26 characters, valid base32)
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("game ID must be exactly %d characters, got %d", Length, len(id))
	}

	if id[0] > '7' {
		return fmt.Errorf("game ID first character must be 0-7, got %c", id[0])
	}

	for i, char := range id {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}

	return nil
}
