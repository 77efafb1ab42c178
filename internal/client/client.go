// Package client talks to a blackjack server. Requests go over the
// websocket channel first; a request that gets no reply within the request
// timeout is resent over HTTP with the same requestId, so the server applies
// it at most once whichever copy arrives.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/protocol"
)

// Channel names the transport that answered a request
type Channel string

const (
	ChannelWebSocket Channel = "websocket"
	ChannelHTTP      Channel = "http"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

// ErrNotConnected is returned when the websocket channel is down
var ErrNotConnected = errors.New("websocket not connected")

// Options configures a Client
type Options struct {
	Token          string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *log.Logger
}

// Response is a successful reply
type Response struct {
	Game    *blackjack.View
	Balance *decimal.Decimal
	Channel Channel
}

// Client is a dual-channel blackjack client
type Client struct {
	base    *url.URL
	token   string
	timeout time.Duration
	dial    time.Duration
	http    *http.Client
	logger  *log.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	send      chan *protocol.Message
	pending   map[string]chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a client for the server at serverURL (http or https)
func New(serverURL string, opts Options) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", serverURL)
	}

	c := &Client{
		base:    u,
		token:   opts.Token,
		timeout: opts.RequestTimeout,
		dial:    opts.ConnectTimeout,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
		pending: make(map[string]chan *protocol.Message),
		done:    make(chan struct{}),
	}
	if c.timeout <= 0 {
		c.timeout = 2 * time.Second
	}
	if c.dial <= 0 {
		c.dial = 5 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	c.logger = c.logger.WithPrefix("client")
	return c, nil
}

// Connect opens the websocket channel. Without it every request goes
// over HTTP.
func (c *Client) Connect(ctx context.Context) error {
	u := *c.base
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.dial)
	defer cancel()

	c.logger.Debug("Connecting to server", "url", c.base.String())
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	send := make(chan *protocol.Message, 16)
	c.mu.Lock()
	c.conn = conn
	c.send = send
	c.mu.Unlock()

	go c.readPump(conn)
	go c.writePump(conn, send)

	c.logger.Info("Connected to server")
	return nil
}

// Connected reports whether the websocket channel is up
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close shuts the websocket channel down
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.disconnect()
	})
	return nil
}

func (c *Client) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	close(c.send)
	c.conn = nil
	c.send = nil
}

// Deal starts a game
func (c *Client) Deal(ctx context.Context, userID string, bet decimal.Decimal) (*Response, error) {
	req := protocol.Deal{UserID: userID, BetAmount: bet, RequestID: uuid.NewString()}
	return c.submit(ctx, protocol.TypeDeal, req.RequestID, "/api/game/play", req)
}

// Act applies an action. An empty RequestID is filled in.
func (c *Client) Act(ctx context.Context, req protocol.Action) (*Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return c.submit(ctx, protocol.TypeAction, req.RequestID, "/api/game/action", req)
}

// Game fetches a game over HTTP
func (c *Client) Game(ctx context.Context, gameID, userID string) (*Response, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("userId", userID)
	}
	var env protocol.Envelope
	if err := c.get(ctx, "/api/game/"+url.PathEscape(gameID), q, &env); err != nil {
		return nil, err
	}
	return &Response{Game: env.Game, Balance: env.UserBalance, Channel: ChannelHTTP}, nil
}

// User fetches a player's balance
func (c *Client) User(ctx context.Context, userID string) (*protocol.User, error) {
	var user protocol.User
	if err := c.get(ctx, "/api/user/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// HistoryQuery filters a history request
type HistoryQuery struct {
	UserID string
	Result string
	Limit  int
	Offset int
}

// History fetches settled games
func (c *Client) History(ctx context.Context, hq HistoryQuery) (*protocol.History, error) {
	q := url.Values{}
	if hq.UserID != "" {
		q.Set("userId", hq.UserID)
	}
	if hq.Result != "" {
		q.Set("result", hq.Result)
	}
	if hq.Limit > 0 {
		q.Set("limit", strconv.Itoa(hq.Limit))
	}
	if hq.Offset > 0 {
		q.Set("offset", strconv.Itoa(hq.Offset))
	}
	var history protocol.History
	if err := c.get(ctx, "/api/history", q, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// submit sends over the websocket and falls back to HTTP when the channel
// is down or the reply does not arrive in time.
func (c *Client) submit(ctx context.Context, t protocol.MessageType, requestID, path string, body any) (*Response, error) {
	resp, err := c.submitWS(ctx, t, requestID, body)
	if err == nil {
		return resp, nil
	}

	var wireErr *protocol.Error
	if errors.As(err, &wireErr) || ctx.Err() != nil {
		return nil, err
	}

	c.logger.Debug("Falling back to HTTP", "request_id", requestID, "reason", err)
	var env protocol.Envelope
	if err := c.post(ctx, path, body, &env); err != nil {
		return nil, err
	}
	return &Response{Game: env.Game, Balance: env.UserBalance, Channel: ChannelHTTP}, nil
}

func (c *Client) submitWS(ctx context.Context, t protocol.MessageType, requestID string, body any) (*Response, error) {
	msg, err := protocol.NewMessage(t, requestID, body)
	if err != nil {
		return nil, err
	}

	reply := make(chan *protocol.Message, 1)
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[requestID] = reply
	select {
	case c.send <- msg:
	default:
		delete(c.pending, requestID)
		c.mu.Unlock()
		return nil, fmt.Errorf("send buffer full")
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case m, ok := <-reply:
		if !ok {
			return nil, ErrNotConnected
		}
		var env protocol.Envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			return nil, fmt.Errorf("decode %s: %w", m.Type, err)
		}
		if env.Error != nil {
			return nil, env.Error
		}
		return &Response{Game: env.Game, Balance: env.UserBalance, Channel: ChannelWebSocket}, nil
	case <-timer.C:
		return nil, fmt.Errorf("no reply within %s", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			close(c.send)
			c.conn = nil
			c.send = nil
		}
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
	}()

	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket error", "error", err)
			}
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		if ok {
			delete(c.pending, msg.RequestID)
		}
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("Dropping uncorrelated message", "type", msg.Type, "request_id", msg.RequestID)
			continue
		}
		ch <- &msg
	}
}

func (c *Client) writePump(conn *websocket.Conn, send <-chan *protocol.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				c.logger.Warn("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, q), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = path
	u.RawQuery = q.Encode()
	return u.String()
}

// do runs req and decodes the body into out, or returns the error envelope.
func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var env protocol.Envelope
		if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
			return env.Error
		}
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
