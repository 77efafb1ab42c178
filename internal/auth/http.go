package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
)

const (
	defaultTimeout  = 500 * time.Millisecond
	maxCachedTokens = 4096
)

// HTTPOptions tunes an HTTPValidator. Zero values pick defaults.
type HTTPOptions struct {
	AdminSecret string
	Timeout     time.Duration
	// CacheTTL keeps accepted tokens for this long; zero disables caching.
	// A player falling back from websocket to HTTP presents the same token
	// on every request.
	CacheTTL time.Duration
	Clock    quartz.Clock
	Client   *http.Client
}

// HTTPValidator checks tokens against an external introspection endpoint:
// POST {"token": ...} answered by {"valid", "player_id", "display_name"}.
type HTTPValidator struct {
	url  string
	opts HTTPOptions

	mu    sync.Mutex
	cache map[string]cachedIdentity
}

type cachedIdentity struct {
	identity *Identity
	expires  time.Time
}

// NewHTTPValidator creates a validator that calls url for every uncached token.
func NewHTTPValidator(url string, opts HTTPOptions) *HTTPValidator {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	return &HTTPValidator{
		url:   url,
		opts:  opts,
		cache: make(map[string]cachedIdentity),
	}
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Valid       bool   `json:"valid"`
	PlayerID    string `json:"player_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if id := v.cached(token); id != nil {
		return id, nil
	}

	id, err := v.introspect(ctx, token)
	if err != nil {
		return nil, err
	}
	v.remember(token, id)
	return id, nil
}

func (v *HTTPValidator) introspect(ctx context.Context, token string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	body, err := json.Marshal(introspectRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.opts.AdminSecret != "" {
		req.Header.Set("X-Admin-Secret", v.opts.AdminSecret)
	}

	resp, err := v.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out introspectResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if !out.Valid || out.PlayerID == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{PlayerID: out.PlayerID, DisplayName: out.DisplayName}, nil
}

func (v *HTTPValidator) cached(token string) *Identity {
	if v.opts.CacheTTL <= 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.cache[token]
	if !ok {
		return nil
	}
	if !v.opts.Clock.Now().Before(entry.expires) {
		delete(v.cache, token)
		return nil
	}
	return entry.identity
}

func (v *HTTPValidator) remember(token string, id *Identity) {
	if v.opts.CacheTTL <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.opts.Clock.Now()
	if len(v.cache) >= maxCachedTokens {
		for k, e := range v.cache {
			if !now.Before(e.expires) {
				delete(v.cache, k)
			}
		}
		if len(v.cache) >= maxCachedTokens {
			clear(v.cache)
		}
	}
	v.cache[token] = cachedIdentity{identity: id, expires: now.Add(v.opts.CacheTTL)}
}
