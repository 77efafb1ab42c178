package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func introspection(t *testing.T, opts HTTPOptions, handler http.HandlerFunc) *HTTPValidator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPValidator(srv.URL, opts)
}

// players answers "good" as alice and rejects everything else.
func players(t *testing.T, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req introspectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Token != "good" {
			_ = json.NewEncoder(w).Encode(introspectResponse{Valid: false})
			return
		}
		_ = json.NewEncoder(w).Encode(introspectResponse{Valid: true, PlayerID: "alice", DisplayName: "Alice"})
	}
}

func TestHTTPValidatorValidToken(t *testing.T) {
	var secret string
	v := introspection(t, HTTPOptions{AdminSecret: "secret"}, func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Admin-Secret")
		players(t, nil)(w, r)
	})

	id, err := v.Validate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.PlayerID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.Equal(t, "secret", secret)

	_, err = v.Validate(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidatorStatusCodes(t *testing.T) {
	for status, want := range map[int]error{
		http.StatusUnauthorized:       ErrInvalidToken,
		http.StatusForbidden:          ErrInvalidToken,
		http.StatusTooManyRequests:    ErrUnavailable,
		http.StatusServiceUnavailable: ErrUnavailable,
		http.StatusTeapot:             ErrUnavailable,
	} {
		v := introspection(t, HTTPOptions{}, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := v.Validate(context.Background(), "token")
		assert.ErrorIs(t, err, want, "status %d", status)
	}
}

func TestHTTPValidatorTimeout(t *testing.T) {
	v := introspection(t, HTTPOptions{Timeout: 20 * time.Millisecond}, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	_, err := v.Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPValidatorGarbageBody(t *testing.T) {
	v := introspection(t, HTTPOptions{}, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})
	_, err := v.Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPValidatorCachesAcceptedTokens(t *testing.T) {
	clock := quartz.NewMock(t)
	var calls atomic.Int32
	v := introspection(t, HTTPOptions{CacheTTL: time.Minute, Clock: clock}, players(t, &calls))
	ctx := context.Background()

	for range 3 {
		id, err := v.Validate(ctx, "good")
		require.NoError(t, err)
		assert.Equal(t, "alice", id.PlayerID)
	}
	assert.EqualValues(t, 1, calls.Load())

	// rejections are not cached
	for range 2 {
		_, err := v.Validate(ctx, "bad")
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	assert.EqualValues(t, 3, calls.Load())

	clock.Advance(time.Minute)
	_, err := v.Validate(ctx, "good")
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load())
}

func TestHTTPValidatorWithoutCache(t *testing.T) {
	var calls atomic.Int32
	v := introspection(t, HTTPOptions{}, players(t, &calls))

	for range 2 {
		_, err := v.Validate(context.Background(), "good")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, calls.Load())
}
