package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/blackjack/internal/auth"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/gateway"
	"github.com/lox/blackjack/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBuffer = 64
)

var ErrConnectionClosed = errors.New("connection closed")

// Connection is one websocket client. Requests are processed in the order
// they arrive and every response echoes the request's requestId.
type Connection struct {
	conn      *websocket.Conn
	gw        *gateway.Gateway
	send      chan *protocol.Message
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	sendMu    sync.RWMutex
	closed    bool
}

// NewConnection wraps conn. A non-nil identity restricts the connection to
// that player's games.
func NewConnection(conn *websocket.Conn, gw *gateway.Gateway, identity *auth.Identity, logger zerolog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	if identity != nil {
		ctx = auth.WithIdentity(ctx, identity)
	}

	l := logger.With().Str("component", "conn").Str("remote", conn.RemoteAddr().String())
	if identity != nil {
		l = l.Str("player_id", identity.PlayerID)
	}

	return &Connection{
		conn:   conn,
		gw:     gw,
		send:   make(chan *protocol.Message, sendBuffer),
		logger: l.Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues msg for the client. A client that falls behind by a
// full buffer is disconnected.
func (c *Connection) SendMessage(msg *protocol.Message) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn().Msg("Connection send buffer full, closing connection")
		go func() { _ = c.Close() }()
		return ErrConnectionClosed
	}
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.reply("", nil, blackjack.Wrap(blackjack.ErrMalformedRequest, err))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug().Str("type", msg.Type.String()).Str("request_id", msg.RequestID).Msg("Received message")

	switch msg.Type {
	case protocol.TypeAction:
		var req protocol.Action
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.reply(msg.RequestID, nil, blackjack.Wrap(blackjack.ErrMalformedRequest, err))
			return
		}
		if req.RequestID == "" {
			req.RequestID = msg.RequestID
		}
		if !auth.Authorize(c.ctx, req.UserID) {
			c.reply(msg.RequestID, nil, blackjack.ErrUnauthenticated)
			return
		}
		view, err := c.gw.Apply(c.ctx, actionRequest(req))
		c.reply(msg.RequestID, view, err)

	case protocol.TypeDeal:
		var req protocol.Deal
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.reply(msg.RequestID, nil, blackjack.Wrap(blackjack.ErrMalformedRequest, err))
			return
		}
		if req.RequestID == "" {
			req.RequestID = msg.RequestID
		}
		if !auth.Authorize(c.ctx, req.UserID) {
			c.reply(msg.RequestID, nil, blackjack.ErrUnauthenticated)
			return
		}
		view, err := c.gw.Deal(c.ctx, dealRequest(req))
		c.reply(msg.RequestID, view, err)

	default:
		c.reply(msg.RequestID, nil, blackjack.Wrap(blackjack.ErrMalformedRequest,
			protocol.ErrUnknownMessageType))
	}
}

// reply sends a game_state message for view, or an error message for err
func (c *Connection) reply(requestID string, view *blackjack.View, err error) {
	t, body := protocol.TypeGameState, (*protocol.Envelope)(nil)
	if err != nil {
		t, body = protocol.TypeError, protocol.NewErrorEnvelope(err)
	} else {
		body = protocol.NewEnvelope(view)
	}

	msg, encErr := protocol.NewMessage(t, requestID, body)
	if encErr != nil {
		c.logger.Error().Err(encErr).Msg("Failed to encode response")
		return
	}
	_ = c.SendMessage(msg) // Ignore send errors, the client is gone
}
