package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client binds a WebSocket connection to its registry entry and session. The
// read pump turns frames into session events; the write pump drains the
// registry outbox onto the socket.
type Client struct {
	conn        *websocket.Conn
	entry       *Connection
	session     *Session
	registry    *Registry
	cfg         Config
	limiter     *rate.Limiter
	log         *zap.Logger
}

// NewClient creates a Client for an accepted WebSocket connection that has
// already been registered as entry.
func NewClient(conn *websocket.Conn, entry *Connection, session *Session, registry *Registry, cfg Config, log *zap.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		conn:        conn,
		entry:       entry,
		session:     session,
		registry:    registry,
		cfg:         cfg,
		limiter:     cfg.RateLimit.Limiter(),
		log:         log.With(zap.Stringer("handle", entry.Handle()), zap.String("addr", entry.addr)),
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// logReadError logs the reason the read loop stopped.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", zap.Int64("limit", c.cfg.MaxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("Client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Client connection closed", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket error", zap.Error(err))
	default:
		c.log.Warn("WebSocket read error", zap.Error(err))
	}
}

// checkRateLimit reports whether the next frame may be processed.
func (c *Client) checkRateLimit() bool {
	if !c.limiter.Allow() {
		c.log.Warn("Rate limit exceeded; discarding message",
			zap.Int("burst", c.cfg.RateLimit.Burst),
			zap.Duration("interval", c.cfg.RateLimit.RefillInterval))
		return false
	}
	return true
}

// processMessage decodes one inbound frame and applies it to the session. The
// returned error is meant for this client only.
func (c *Client) processMessage(ctx context.Context, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}

	switch env.Event {
	case EventJoin:
		var payload JoinPayload
		if err := decodeData(env.Data, &payload); err != nil {
			return err
		}
		return c.session.Join(ctx, payload.Username)

	case EventMessage:
		var payload MessagePayload
		if err := decodeData(env.Data, &payload); err != nil {
			return err
		}
		return c.session.Message(ctx, payload.Msg, payload.Sender)

	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing event data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid event data: %w", err)
	}
	return nil
}

// reject reports err to this client only; the connection stays open.
func (c *Client) reject(code string, err error) {
	payload, encErr := encodeEnvelope(EventError, ErrorPayload{Code: code, Message: err.Error()})
	if encErr != nil {
		c.log.Error("Error encoding error event", zap.Error(encErr))
		return
	}
	if sendErr := c.registry.SendTo(c.entry.Handle(), payload); sendErr != nil {
		c.log.Debug("Could not deliver error event", zap.Error(sendErr))
	}
}

func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.session.Disconnect()
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				c.log.Warn("Error closing connection in readPump", zap.Error(err))
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			c.reject(codeRateLimited, errors.New("rate limit exceeded"))
			continue
		}

		if err := c.processMessage(ctx, rawMessage); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return
			}
			c.log.Info("Rejected client event", zap.Error(err))
			c.reject(errorCode(err), err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	outbox := c.entry.Outbox()
	for c.processWriteEvent(outbox, ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(outbox <-chan []byte, ticker *time.Ticker) bool {
	select {
	case message, ok := <-outbox:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection in writePump", zap.Error(err))
		}
	}
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		c.log.Warn("Error setting write deadline", zap.Error(err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", zap.Error(err))
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing close message", zap.Error(err))
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		c.log.Warn("Error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("Error writing ping message", zap.Error(err))
		return false
	}
	return true
}
