package blackjack

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transports
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflictState
	KindInsufficientBalance
	KindShoeExhausted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflictState:
		return "CONFLICT_STATE"
	case KindInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case KindShoeExhausted:
		return "SHOE_EXHAUSTED"
	default:
		return "INTERNAL"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is a typed game error. Code is a stable machine-readable reason
// within the Kind.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and code, so wrapped
// copies still match the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Retryable reports whether the caller may resubmit the same action.
func (e *Error) Retryable() bool {
	return e.Kind == KindShoeExhausted || e.Kind == KindInternal
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap returns a copy of sentinel carrying err as its cause
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: err}
}

// Internal wraps a downstream failure
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: err}
}

// KindOf extracts the Kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Validation errors
var (
	ErrUnknownAction     = newError(KindValidation, "unknown_action", "unknown action")
	ErrInvalidBet        = newError(KindValidation, "invalid_bet", "bet must be positive with at most two decimal places")
	ErrMissingField      = newError(KindValidation, "missing_field", "required field missing")
	ErrMalformedRequest  = newError(KindValidation, "malformed_request", "request is not valid JSON")
	ErrInvalidFilter     = newError(KindValidation, "invalid_filter", "invalid history filter")
	ErrInvalidHandIndex  = newError(KindValidation, "invalid_hand_index", "hand index must address a split hand")
	ErrInvalidAceValue   = newError(KindValidation, "invalid_ace_value", "ace value must be 1 or 11")
	ErrSplitHandsActive  = newError(KindValidation, "split_hands_active", "hand has been split, use split_hit or split_stand")
	ErrNotSplit          = newError(KindValidation, "not_split", "hand has not been split")
	ErrHandFinished      = newError(KindValidation, "hand_finished", "split hand is already finished")
	ErrCannotDouble      = newError(KindValidation, "cannot_double", "double down requires exactly two cards")
	ErrCannotSplit       = newError(KindValidation, "cannot_split", "split requires two cards of equal rank")
	ErrAlreadySplit      = newError(KindValidation, "already_split", "hand has already been split")
	ErrCannotSurrender   = newError(KindValidation, "cannot_surrender", "surrender requires two unsplit cards")
	ErrInsuranceNotOffer = newError(KindValidation, "insurance_not_offered", "insurance requires a dealer ace with two dealer cards")
	ErrInsuranceTaken    = newError(KindValidation, "insurance_taken", "insurance already taken")
	ErrInsuranceTooSmall = newError(KindValidation, "insurance_too_small", "bet too small to insure")
	ErrNoAce             = newError(KindValidation, "no_ace", "hand holds no ace")
	ErrAceChoiceDead     = newError(KindValidation, "ace_choice_not_live", "only one ace value is playable")
	ErrInvalidAmount     = newError(KindValidation, "invalid_amount", "amount must be non-zero with at most two decimal places")
	ErrInvalidAdjustment = newError(KindValidation, "invalid_adjustment_type", "unknown balance adjustment type")
)

// State, ownership and resource errors
var (
	ErrNotPlaying          = newError(KindConflictState, "not_playing", "game is not in progress")
	ErrNotBetting          = newError(KindConflictState, "not_betting", "game has already been dealt")
	ErrActiveGame          = newError(KindConflictState, "active_game", "player already has a game in progress")
	ErrStaleGame           = newError(KindConflictState, "stale_game", "game changed concurrently")
	ErrNotOwner            = newError(KindUnauthorized, "not_owner", "game belongs to another player")
	ErrUnauthenticated     = newError(KindUnauthorized, "invalid_token", "missing or invalid credentials")
	ErrAdminRequired       = newError(KindUnauthorized, "admin_required", "admin credentials required")
	ErrGameNotFound        = newError(KindNotFound, "game_not_found", "game not found")
	ErrPlayerNotFound      = newError(KindNotFound, "player_not_found", "player not found")
	ErrInsufficientBalance = newError(KindInsufficientBalance, "insufficient_balance", "insufficient balance")
	ErrShoeExhausted       = newError(KindShoeExhausted, "shoe_exhausted", "shoe is exhausted")
)
