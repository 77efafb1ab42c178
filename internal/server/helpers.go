package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lox/blackjack/internal/protocol"
)

// WaitForHealthy polls GET /api/health on baseURL (e.g.
// "http://localhost:8080") every interval until the server reports "ok" or
// ctx is done.
func WaitForHealthy(ctx context.Context, baseURL string, interval time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if healthy(ctx, client, baseURL+"/api/health") {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func healthy(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var h protocol.Health
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&h) != nil {
		return false
	}
	return h.Status == "ok"
}
