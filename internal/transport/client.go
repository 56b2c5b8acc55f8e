package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
)

const (
	// maxReconnectAttempts caps reconnection before giving up silently.
	maxReconnectAttempts = 10

	baseReconnectDelay = time.Second
	maxReconnectDelay  = 30 * time.Second

	writeTimeout = 10 * time.Second
)

var (
	// ErrKicked is returned by Connect after a kick signal; the kick latch is
	// permanent for the lifetime of the client instance.
	ErrKicked = errors.New("transport: kicked from session")

	// ErrClosed is returned by Connect after a caller-initiated Close.
	ErrClosed = errors.New("transport: client closed")

	// ErrNotConnected is returned by Send when no connection is open. Sends
	// are fire-and-forget; failed sends are never queued.
	ErrNotConnected = errors.New("transport: not connected")
)

// Handlers are the event callbacks a Client emits. All callbacks are invoked
// from the client's read goroutine and must not block.
type Handlers struct {
	OnOpen    func()
	OnMessage func(protocol.Message)
	OnClose   func()
}

// Client owns one logical websocket connection to the room server and
// transparently reconnects with exponential backoff on unexpected closes.
// It has no knowledge of message semantics beyond frame decoding.
type Client struct {
	url      string
	dialer   *websocket.Dialer
	clock    clockwork.Clock
	handlers Handlers

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	kicked    bool
	attempt   int
	exhausted bool
	gen       int // connection generation, guards stale read loops
}

// NewClient builds a client for the given connection URL. The URL already
// carries the room and session-token query parameters.
func NewClient(url string, clock clockwork.Clock, handlers Handlers) *Client {
	return &Client{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		clock:    clock,
		handlers: handlers,
	}
}

// Connect opens the connection. On failure the reconnect schedule takes over;
// Connect itself only errors when the client can never connect again.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.kicked {
		c.mu.Unlock()
		return ErrKicked
	}
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", c.url).Msg("websocket dial failed")
		c.handleDisconnect()
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	if c.kicked || c.closed {
		err := ErrClosed
		if c.kicked {
			err = ErrKicked
		}
		c.mu.Unlock()
		conn.Close()
		return err
	}
	c.conn = conn
	c.connected = true
	c.attempt = 0
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	log.Info().Str("url", c.url).Msg("websocket connected")
	if c.handlers.OnOpen != nil {
		c.handlers.OnOpen()
	}

	go c.readLoop(conn, gen)
	return nil
}

// readLoop consumes frames until the connection dies, then hands control to
// the reconnect schedule.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket closed unexpectedly")
			}
			break
		}
		for _, msg := range decodeFrame(frame) {
			if c.handlers.OnMessage != nil {
				c.handlers.OnMessage(msg)
			}
		}
	}

	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		return
	}
	c.handleDisconnect()
}

// decodeFrame splits one wire frame into newline-delimited records and
// decodes each independently. A record that fails to decode is logged and
// skipped without aborting the rest of the batch.
func decodeFrame(frame []byte) []protocol.Message {
	var msgs []protocol.Message
	for _, raw := range bytes.Split(frame, []byte{'\n'}) {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Error().Err(err).Msg("failed to decode record, skipping")
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// handleDisconnect marks the connection down, notifies the owner, and
// schedules a reconnect unless the close was terminal.
func (c *Client) handleDisconnect() {
	c.mu.Lock()
	c.connected = false
	c.conn = nil
	kicked := c.kicked
	closed := c.closed
	c.mu.Unlock()

	if c.handlers.OnClose != nil {
		c.handlers.OnClose()
	}
	if kicked || closed {
		return
	}
	c.scheduleReconnect()
}

// scheduleReconnect arms the next backoff attempt. After the attempt cap the
// client gives up silently; the owner sees only the ordinary disconnected
// state plus Exhausted().
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.kicked || c.closed {
		c.mu.Unlock()
		return
	}
	if c.attempt >= maxReconnectAttempts {
		c.exhausted = true
		c.mu.Unlock()
		log.Warn().Int("attempts", maxReconnectAttempts).Msg("reconnect attempts exhausted, giving up")
		return
	}
	delay := backoffDelay(c.attempt)
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("scheduling reconnect")
	c.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		kicked := c.kicked
		closed := c.closed
		c.mu.Unlock()
		if kicked || closed {
			return
		}
		c.Connect()
	})
}

// backoffDelay returns min(1s * 2^attempt, 30s).
func backoffDelay(attempt int) time.Duration {
	delay := baseReconnectDelay << uint(attempt)
	if delay <= 0 || delay > maxReconnectDelay {
		return maxReconnectDelay
	}
	return delay
}

// Send enqueues a message for delivery if and only if the connection is
// currently open. There is no delivery guarantee.
func (c *Client) Send(msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(c.clock.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// KickedClose permanently disables the client after a kick signal. There is
// no un-kick; subsequent Connect calls fail with ErrKicked.
func (c *Client) KickedClose() {
	c.mu.Lock()
	c.kicked = true
	c.gen++
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	log.Info().Msg("kicked, permanently closing websocket")
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Kicked"),
			c.clock.Now().Add(writeTimeout))
		conn.Close()
		// The read loop sees a stale generation and stays silent; the close
		// notification happens here. The kick latch blocks reconnection.
		if c.handlers.OnClose != nil {
			c.handlers.OnClose()
		}
	}
}

// Close performs a graceful, non-reconnecting shutdown.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Client shutdown"),
			c.clock.Now().Add(writeTimeout))
		conn.Close()
		if c.handlers.OnClose != nil {
			c.handlers.OnClose()
		}
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Exhausted reports whether the reconnect attempt cap was reached.
func (c *Client) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}
