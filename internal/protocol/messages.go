// Package protocol defines the JSON messages exchanged over the websocket
// channel and the HTTP fallback. Both channels carry the same envelope.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/store"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Client -> Server
	TypeAction MessageType = "action"
	TypeDeal   MessageType = "deal"

	// Server -> Client
	TypeGameState MessageType = "game_state"
	TypeError     MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}

var ErrUnknownMessageType = errors.New("unknown message type")

// Message is a websocket frame. RequestID correlates a response with the
// request that caused it.
type Message struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage encodes data into a message stamped with the current time
func NewMessage(t MessageType, requestID string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return &Message{Type: t, RequestID: requestID, Data: raw, Timestamp: time.Now().UTC()}, nil
}

// Client -> Server

// Action asks the server to apply a move to a game
type Action struct {
	GameID    string             `json:"gameId"`
	Action    string             `json:"action"`
	UserID    string             `json:"userId"`
	RequestID string             `json:"requestId,omitempty"`
	Payload   *blackjack.Payload `json:"payload,omitempty"`
}

// Deal asks the server to start a game
type Deal struct {
	UserID    string          `json:"userId"`
	BetAmount decimal.Decimal `json:"betAmount"`
	RequestID string          `json:"requestId,omitempty"`
}

// Server -> Client

// Envelope is the response body on both channels
type Envelope struct {
	Success     bool             `json:"success"`
	Game        *blackjack.View  `json:"game,omitempty"`
	UserBalance *decimal.Decimal `json:"userBalance,omitempty"`
	Error       *Error           `json:"error,omitempty"`
}

// Error describes a rejected request
type Error struct {
	Kind      string `json:"kind"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

// NewEnvelope wraps a game view
func NewEnvelope(v *blackjack.View) *Envelope {
	return &Envelope{Success: true, Game: v, UserBalance: v.Balance}
}

// NewErrorEnvelope converts err into its wire form. Untyped errors are
// reported as internal without leaking their text.
func NewErrorEnvelope(err error) *Envelope {
	return &Envelope{Error: NewError(err)}
}

func NewError(err error) *Error {
	var gameErr *blackjack.Error
	if !errors.As(err, &gameErr) {
		gameErr = blackjack.Internal(err)
	}
	return &Error{
		Kind:      gameErr.Kind.String(),
		Code:      gameErr.Code,
		Message:   gameErr.Message,
		Retryable: gameErr.Retryable(),
	}
}

// User is the body of GET /api/user and GET /api/user/{id}
type User struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceUpdate is the body of POST /api/user. An empty UserID selects the
// demo account.
type BalanceUpdate struct {
	UserID  string           `json:"userId,omitempty"`
	Balance *decimal.Decimal `json:"balance"`
}

// BalanceAdjustment is the body of POST /api/user/{id}
type BalanceAdjustment struct {
	Amount *decimal.Decimal `json:"amount"`
	Type   string           `json:"type,omitempty"`
}

// Account answers a balance change
type Account struct {
	Success bool             `json:"success"`
	ID      string           `json:"id"`
	Balance decimal.Decimal  `json:"balance"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Type    string           `json:"type,omitempty"`
}

// Users is the body of GET /api/users
type Users struct {
	Users      []store.Player `json:"users"`
	Pagination Pagination     `json:"pagination"`
}

// NewUsers builds the response for one page of accounts
func NewUsers(page *store.PlayerPage) *Users {
	return &Users{
		Users: page.Players,
		Pagination: Pagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.Offset+len(page.Players) < page.Total,
		},
	}
}

// History is the body of GET /api/history
type History struct {
	Games        []*blackjack.View `json:"games"`
	OverallStats HistoryStats      `json:"overallStats"`
	Pagination   Pagination        `json:"pagination"`
}

// HistoryStats adds the derived win rate to the stored aggregates
type HistoryStats struct {
	store.Stats
	WinRate float64 `json:"winRate"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// NewHistory builds the response for one page of history
func NewHistory(page *store.HistoryPage) *History {
	h := &History{
		Games:        make([]*blackjack.View, 0, len(page.Games)),
		OverallStats: HistoryStats{Stats: page.Stats, WinRate: page.Stats.WinRate()},
		Pagination: Pagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.Offset+len(page.Games) < page.Total,
		},
	}
	for _, g := range page.Games {
		h.Games = append(h.Games, blackjack.NewView(g, nil))
	}
	return h
}

// Health is the body of GET /api/health
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
