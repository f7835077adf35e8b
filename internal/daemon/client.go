// Package daemon delivers command envelopes to the GoXLR daemon over its websocket API.
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"goxlr-controller/internal/command"
)

var (
	// ErrNotConnected is returned when no daemon connection is open or it dropped mid-request.
	ErrNotConnected = errors.New("daemon not connected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("daemon client closed")
)

// DaemonError is a request the daemon answered with {"Error": "..."}.
type DaemonError struct {
	Message string
}

func (e *DaemonError) Error() string {
	return "daemon error: " + e.Message
}

// Options tune a Client. Zero values fall back to the defaults in NewClient.
type Options struct {
	RequestTimeout    time.Duration
	RetryDelay        time.Duration
	HeartbeatInterval time.Duration
	Dialer            *websocket.Dialer
}

type request struct {
	ID   uint64 `json:"id"`
	Data any    `json:"data"`
}

type response struct {
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Client is a request/response connection to the daemon. Send is safe for
// concurrent use; ordering between callers is the caller's concern.
type Client struct {
	url  string
	opts Options

	mu      sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
	pending map[uint64]chan json.RawMessage
	closed  bool

	writeMu sync.Mutex
	nextID  atomic.Uint64
}

// NewClient creates a client for the daemon websocket at url. It does not connect.
func NewClient(url string, opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		url:     url,
		opts:    opts,
		pending: make(map[uint64]chan json.RawMessage),
	}
}

// Connect dials the daemon and starts reading responses. It is a no-op when
// already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := c.opts.Dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		if c.closed {
			return ErrClosed
		}
		return nil
	}
	done := make(chan struct{})
	c.conn = conn
	c.done = done
	c.mu.Unlock()

	go c.readLoop(conn, done)
	return nil
}

// Connected reports whether a connection is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection and fails every pending request. The client cannot
// be reused.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.drop(conn)
	}
	return nil
}

// Send delivers env and waits for the daemon's answer. A nil error means the daemon
// accepted the command.
func (c *Client) Send(ctx context.Context, env command.Envelope) error {
	if env.IsZero() {
		return fmt.Errorf("%w: empty envelope", command.ErrUnknownCommandKind)
	}
	raw, err := c.do(ctx, env)
	if err != nil {
		return err
	}
	return parseResult(raw)
}

// Ping checks the daemon answers requests.
func (c *Client) Ping(ctx context.Context) error {
	raw, err := c.do(ctx, "Ping")
	if err != nil {
		return err
	}
	return parseResult(raw)
}

func (c *Client) do(ctx context.Context, data any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	ch := make(chan json.RawMessage, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(deadline)
	err := conn.WriteJSON(request{ID: id, Data: data})
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		c.drop(conn)
		return nil, fmt.Errorf("write request %d: %w", id, err)
	}

	select {
	case raw, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		return raw, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, fmt.Errorf("request %d: %w", id, ctx.Err())
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// drop detaches conn if it is still current and fails its pending requests.
func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var resp response
		if err := conn.ReadJSON(&resp); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				log.Printf("[Daemon] Read failed, dropping connection: %v", err)
			}
			c.drop(conn)
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()

		// Unsolicited messages (status patches) have no pending request.
		if ok {
			ch <- resp.Data
		}
	}
}

func (c *Client) current() (*websocket.Conn, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn, c.done
}

func parseResult(raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		// "Ok" and other bare answers are successes.
		return nil
	}
	var obj struct {
		Error *string `json:"Error"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	if obj.Error != nil {
		return &DaemonError{Message: *obj.Error}
	}
	return nil
}
