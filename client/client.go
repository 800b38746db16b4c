// Package client talks to a taskq server over the dwp WebSocket protocol.
//
//	c, err := client.Dial("wss://tasks.example.com/dwp",
//	    client.WithToken("tq_..."),
//	    client.WithFormat("msgpack"),
//	)
//	defer c.Close()
//
//	h, err := c.Enqueue(ctx, "divide", 8, client.Operand(2))
//	snap, err := c.Wait(ctx, h.JobID, 0)
//
// Requests are multiplexed over one session. When the session drops, every
// request in flight fails with ErrDisconnected; with WithReconnect the
// client then re-dials and re-authenticates in the background.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/taskq/backoff"
	"github.com/xraph/taskq/dwp"
)

// Client is a dwp client bound to one server URL.
type Client struct {
	url              string
	token            string
	format           string
	logger           *slog.Logger
	handshakeTimeout time.Duration

	reconnect  bool
	maxRetries int
	delays     backoff.Strategy

	closed atomic.Bool

	mu        sync.Mutex // guards conn, codec, sessionID and writes
	conn      net.Conn
	codec     dwp.Codec
	sessionID string

	pendMu  sync.Mutex
	pending map[string]chan *dwp.Frame
	down    bool // no read loop is running
}

// Dial connects to a dwp server and authenticates.
func Dial(url string, opts ...Option) (*Client, error) {
	return DialContext(context.Background(), url, opts...)
}

// DialContext is Dial bounded by ctx.
func DialContext(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:              url,
		format:           dwp.CodecNameJSON,
		logger:           slog.Default(),
		handshakeTimeout: 10 * time.Second,
		pending:          make(map[string]chan *dwp.Frame),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.delays == nil {
		c.delays = backoff.NewJitter(time.Second, 30*time.Second)
	}

	if _, err := dwp.GetCodec(c.format); err != nil {
		return nil, fmt.Errorf("taskq/client: dial: %w", err)
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskq/client: dial: %w", err)
	}
	go c.readLoop(conn)

	return c, nil
}

// connect dials, authenticates and installs the new session.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	authResp, err := c.handshake(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	codec, err := dwp.GetCodec(authResp.Format)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	c.codec = codec
	c.sessionID = authResp.SessionID
	c.mu.Unlock()

	c.pendMu.Lock()
	c.down = false
	c.pendMu.Unlock()

	c.logger.Info("dwp client connected",
		slog.String("session_id", authResp.SessionID),
		slog.String("format", codec.Name()),
	)
	return conn, nil
}

// handshake runs the auth exchange, which is always JSON, under a read and
// write deadline.
func (c *Client) handshake(ctx context.Context, conn net.Conn) (*dwp.AuthResponse, error) {
	deadline := time.Now().Add(c.handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	defer conn.SetDeadline(time.Time{}) //nolint:errcheck // clearing a deadline on a live conn

	req, err := dwp.NewRequestFrame(dwp.GenerateFrameID(), dwp.MethodAuth, dwp.AuthRequest{
		Token:  c.token,
		Format: c.format,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal auth request: %w", err)
	}
	req.Token = c.token

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal auth frame: %w", err)
	}
	if err := wsutil.WriteClientText(conn, data); err != nil {
		return nil, fmt.Errorf("write auth frame: %w", err)
	}

	data, err = wsutil.ReadServerText(conn)
	if err != nil {
		return nil, fmt.Errorf("read auth response: %w", err)
	}
	var resp dwp.Frame
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal auth response: %w", err)
	}
	if resp.Type == dwp.FrameErr {
		return nil, fmt.Errorf("auth failed: %w", frameError(&resp))
	}

	var authResp dwp.AuthResponse
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &authResp); err != nil {
			return nil, fmt.Errorf("unmarshal auth data: %w", err)
		}
	}
	return &authResp, nil
}

// readLoop routes responses on conn to their waiting requests until the
// session ends.
func (c *Client) readLoop(conn net.Conn) {
	c.mu.Lock()
	codec := c.codec
	c.mu.Unlock()

	for {
		data, _, err := wsutil.ReadServerData(conn)
		if err != nil {
			c.failPending()
			if c.closed.Load() {
				return
			}
			c.logger.Warn("dwp client read error", slog.String("error", err.Error()))
			if c.reconnect {
				c.tryReconnect()
			}
			return
		}

		frame, err := codec.Decode(data)
		if err != nil {
			c.logger.Warn("dwp client: invalid frame", slog.String("error", err.Error()))
			continue
		}

		switch frame.Type {
		case dwp.FrameResponse, dwp.FrameErr, dwp.FramePong:
			c.deliver(frame)
		case dwp.FramePing, dwp.FrameRequest:
		}
	}
}

func (c *Client) deliver(frame *dwp.Frame) {
	c.pendMu.Lock()
	ch, ok := c.pending[frame.CorrelID]
	delete(c.pending, frame.CorrelID)
	c.pendMu.Unlock()

	if ok {
		ch <- frame
	}
}

// failPending marks the session down and releases every waiting request.
func (c *Client) failPending() {
	c.pendMu.Lock()
	c.down = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendMu.Unlock()
}

// tryReconnect re-dials with the configured delays until it succeeds, the
// retries run out, or the client is closed.
func (c *Client) tryReconnect() {
	for i := 1; i <= c.maxRetries; i++ {
		delay := c.delays.Delay(i)
		c.logger.Info("dwp client reconnecting",
			slog.Int("attempt", i),
			slog.Duration("delay", delay),
		)
		time.Sleep(delay)
		if c.closed.Load() {
			return
		}

		conn, err := c.connect(context.Background())
		if err != nil {
			c.logger.Warn("dwp client reconnect failed", slog.String("error", err.Error()))
			continue
		}
		go c.readLoop(conn)
		return
	}
	c.logger.Error("dwp client: max reconnection attempts reached")
}

// roundTrip writes frame and waits for the frame correlated with it.
func (c *Client) roundTrip(ctx context.Context, frame *dwp.Frame) (*dwp.Frame, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	ch := make(chan *dwp.Frame, 1)
	c.pendMu.Lock()
	if c.down {
		c.pendMu.Unlock()
		return nil, ErrDisconnected
	}
	c.pending[frame.ID] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, frame.ID)
		c.pendMu.Unlock()
	}()

	if err := c.writeFrame(frame); err != nil {
		if c.closed.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("%w: %w", ErrDisconnected, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			if c.closed.Load() {
				return nil, ErrClosed
			}
			return nil, ErrDisconnected
		}
		if resp.Type == dwp.FrameErr {
			return nil, frameError(resp)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// request sends a method call and returns its response frame.
func (c *Client) request(ctx context.Context, method string, data any) (*dwp.Frame, error) {
	frame, err := dwp.NewRequestFrame(dwp.GenerateFrameID(), method, data)
	if err != nil {
		return nil, fmt.Errorf("marshal request data: %w", err)
	}
	return c.roundTrip(ctx, frame)
}

// writeFrame encodes a frame with the negotiated codec and sends it.
func (c *Client) writeFrame(frame *dwp.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	op := ws.OpText
	if c.codec.Binary() {
		op = ws.OpBinary
	}
	return wsutil.WriteClientMessage(c.conn, op, data)
}

// Ping sends a ping frame and waits for the server's pong. It returns the
// round-trip time.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := c.roundTrip(ctx, &dwp.Frame{
		ID:        dwp.GenerateFrameID(),
		Type:      dwp.FramePing,
		Timestamp: start.UTC(),
	})
	if err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// SessionID returns the id the server assigned to the current session.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Format returns the negotiated wire format.
func (c *Client) Format() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec.Name()
}

// Close closes the session. Requests in flight fail with ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
