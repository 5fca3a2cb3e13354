package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

var ErrAlreadyConnected = errors.New("stream channel already connected")

const (
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
)

type ClientConfig struct {
	URL          string
	PingInterval time.Duration
	Dialer       *websocket.Dialer
	// OnResult is invoked for every accepted inbound result message, after
	// local state has been updated.
	OnResult func(*ServerMessage)
	Logger   *slog.Logger
}

// Client is the duplex channel to the remote vision service. Connection state
// and the processing flag are live values read at call time; consumers must
// gate frame sends on Connected() && !Processing() using these accessors, not
// on state captured when their callbacks were created.
type Client struct {
	url          string
	pingInterval time.Duration
	dialer       *websocket.Dialer
	onResult     func(*ServerMessage)
	logger       *slog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	state      State
	processing bool
	current    *ServerMessage
	lastErr    error
	done       chan struct{}

	writeMu sync.Mutex
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		url:          cfg.URL,
		pingInterval: cfg.PingInterval,
		dialer:       cfg.Dialer,
		onResult:     cfg.OnResult,
		logger:       cfg.Logger.With("component", "stream-client"),
		state:        StateDisconnected,
	}
}

// Connect opens the channel. On success prior errors are cleared; on failure
// the client returns to disconnected and the caller may re-invoke Connect.
// There is no automatic reconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.lastErr = err
		c.mu.Unlock()
		return err
	}

	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.processing = false
	c.lastErr = nil
	c.done = done
	c.mu.Unlock()

	go c.readPump(conn, done)
	go c.pingLoop(conn, done)

	c.logger.Info("connected", "url", c.url)
	return nil
}

// SendFrame transmits one frame. Calling while not connected is a logged
// no-op, not an error; callers gate on live state themselves.
func (c *Client) SendFrame(data, sessionID string) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected || conn == nil {
		c.logger.Debug("not connected, dropping frame")
		return nil
	}

	msg := FrameMessage{
		Type:      TypeFrame,
		Data:      StripDataURI(data),
		SessionID: sessionID,
	}
	return c.writeJSON(conn, msg)
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (c *Client) readPump(conn *websocket.Conn, done chan struct{}) {
	defer c.handleClose(conn)

	for {
		select {
		case <-done:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
				c.mu.Lock()
				c.lastErr = err
				c.mu.Unlock()
			}
			return
		}

		msg, err := ParseServerMessage(data)
		if err != nil {
			c.logger.Warn("dropping malformed message", "error", err)
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg *ServerMessage) {
	c.mu.Lock()
	switch msg.Type {
	case TypePong:
		c.mu.Unlock()
		return
	case TypeProcessingStarted:
		c.processing = true
		c.current = msg
	case TypeToken, TypePartial, TypeLowConfidence, TypeQualityWarning:
		c.current = msg
	case TypeComplete, TypeError, TypeDropped:
		c.current = msg
		c.processing = false
	}
	cb := c.onResult
	c.mu.Unlock()

	if cb != nil {
		cb(msg)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// No pong deadline is enforced; a silent remote is only
			// detected when the user stops manually.
			if err := c.writeJSON(conn, map[string]MessageType{"type": TypePing}); err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

func (c *Client) handleClose(conn *websocket.Conn) {
	c.mu.Lock()
	// Ignore a late close from a connection that was already replaced.
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	c.processing = false
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
		c.done = nil
	}
	c.mu.Unlock()

	conn.Close()
	c.logger.Info("disconnected")
}

// Disconnect requests a close and resets local state regardless of whether
// the remote acknowledges. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.handleClose(conn)
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

func (c *Client) Processing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.processing
}

// LastResult returns the most recent inbound message; fast partial updates
// overwrite each other, which is fine since only the latest is displayed.
func (c *Client) LastResult() *ServerMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}
