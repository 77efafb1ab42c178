// Package server exposes the gateway over a websocket channel and an HTTP
// fallback. Both transports accept the same requests and return the same
// envelope.
package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/blackjack/internal/auth"
	"github.com/lox/blackjack/internal/gateway"
)

// Options configures optional server behaviour
type Options struct {
	Validator auth.Validator
	// AdminSecret unlocks the account administration routes via the
	// X-Admin-Secret header. Without it those routes are open only while
	// authentication is disabled.
	AdminSecret    string
	AllowedOrigins []string
	Clock          quartz.Clock
}

// Server serves the websocket and HTTP APIs
type Server struct {
	gw        *gateway.Gateway
	validator auth.Validator
	admin     string
	logger    zerolog.Logger
	clock     quartz.Clock
	origins   []string
	upgrader  websocket.Upgrader
	router    chi.Router

	mu          sync.RWMutex
	connections map[*Connection]struct{}
}

// New creates a server for gw
func New(gw *gateway.Gateway, logger zerolog.Logger, opts Options) *Server {
	s := &Server{
		gw:          gw,
		validator:   opts.Validator,
		admin:       opts.AdminSecret,
		logger:      logger.With().Str("component", "server").Logger(),
		clock:       opts.Clock,
		origins:     opts.AllowedOrigins,
		connections: make(map[*Connection]struct{}),
	}
	if s.validator == nil {
		s.validator = auth.NewNoopValidator()
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/game/play", s.handleDeal)
			r.Post("/game/action", s.handleAction)
			r.Get("/game/{id}", s.handleGetGame)
			r.Get("/user", s.handleCurrentUser)
			r.Get("/user/{id}", s.handleGetUser)
			r.Get("/history", s.handleHistory)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/user", s.handleSetBalance)
			r.Post("/user/{id}", s.handleAdjustBalance)
			r.Get("/users", s.handleListUsers)
		})
	})
	return r
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Stop()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Stop closes every websocket connection
func (s *Server) Stop() {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close() // Ignore close errors during shutdown
	}
}

// ConnectionCount returns the number of open websocket connections
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *Server) register(c *Connection) {
	s.mu.Lock()
	s.connections[c] = struct{}{}
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Debug().Int("total", total).Msg("Client connected")
}

func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	delete(s.connections, c)
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Debug().Int("total", total).Msg("Client disconnected")
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.origins) == 0 {
		return true
	}
	return slices.Contains(s.origins, origin) || slices.Contains(s.origins, "*")
}

// handleWebSocket upgrades the request. The token, when auth is enabled,
// comes from the Authorization header or the token query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.validate(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	client := NewConnection(conn, s.gw, identity, s.logger)
	s.register(client)
	client.Start()

	go func() {
		<-client.Done()
		s.unregister(client)
	}()
}
