package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/protocol"
)

// maxBodySize bounds request bodies on the HTTP channel
const maxBodySize = 64 * 1024

// statusFor maps an error kind onto an HTTP status. Every rejected move is
// a 400; the body's kind and code say which rule it broke.
func statusFor(kind blackjack.Kind) int {
	switch kind {
	case blackjack.KindValidation, blackjack.KindConflictState, blackjack.KindInsufficientBalance:
		return http.StatusBadRequest
	case blackjack.KindUnauthorized:
		return http.StatusForbidden
	case blackjack.KindNotFound:
		return http.StatusNotFound
	case blackjack.KindShoeExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) // Ignore write errors, the client is gone
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(blackjack.KindOf(err)), protocol.NewErrorEnvelope(err))
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return blackjack.Wrap(blackjack.ErrMalformedRequest, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return blackjack.Wrap(blackjack.ErrMalformedRequest, err)
	}
	return nil
}
