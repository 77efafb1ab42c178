// Package auth resolves bearer tokens to players and scopes requests to them.
package auth

import (
	"context"
	"errors"
)

var (
	// ErrInvalidToken means the token was checked and rejected.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable means the token could not be checked. Callers fail closed.
	ErrUnavailable = errors.New("auth: unavailable")
)

// Identity is the player a token belongs to
type Identity struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Validator resolves a token to an Identity.
//
// A nil Identity with a nil error means authentication is disabled and the
// userId carried by each request is trusted.
type Validator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// NoopValidator disables authentication.
type NoopValidator struct{}

func NewNoopValidator() *NoopValidator {
	return &NoopValidator{}
}

func (NoopValidator) Validate(context.Context, string) (*Identity, error) {
	return nil, nil
}

type identityKey struct{}

// WithIdentity returns ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// Authorize reports whether the caller in ctx may act as playerID. Without
// an identity (auth disabled) every player ID is allowed.
func Authorize(ctx context.Context, playerID string) bool {
	id := FromContext(ctx)
	return id == nil || id.PlayerID == playerID
}
