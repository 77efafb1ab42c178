package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lox/blackjack/internal/auth"
	"github.com/lox/blackjack/internal/blackjack"
)

// logRequests logs each request after it completes
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event := s.logger.Debug()
		if ww.Status() >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request completed")
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Secret")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token into an identity on the context
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.validate(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
		if identity != nil {
			r = r.WithContext(auth.WithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin guards account administration. With an admin secret
// configured the X-Admin-Secret header must match it; without one the
// routes are open only while authentication is disabled.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.isAdmin(r) {
			s.logger.Warn().Str("path", r.URL.Path).Msg("Admin request refused")
			writeError(w, blackjack.ErrAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isAdmin(r *http.Request) bool {
	if s.admin == "" {
		_, open := s.validator.(*auth.NoopValidator)
		return open
	}
	given := r.Header.Get("X-Admin-Secret")
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.admin)) == 1
}

func (s *Server) validate(ctx context.Context, token string) (*auth.Identity, error) {
	identity, err := s.validator.Validate(ctx, token)
	switch {
	case err == nil:
		return identity, nil
	case errors.Is(err, auth.ErrInvalidToken):
		return nil, blackjack.ErrUnauthenticated
	default:
		s.logger.Warn().Err(err).Msg("Auth service unavailable")
		return nil, blackjack.Internal(err)
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
