package client

import (
	"log/slog"
	"time"

	"github.com/xraph/taskq/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the API key presented during the auth handshake.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithFormat selects the wire format negotiated after auth: "json"
// (default) or "msgpack".
func WithFormat(format string) Option {
	return func(c *Client) { c.format = format }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHandshakeTimeout bounds the auth exchange. Defaults to 10s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithReconnect re-dials up to maxRetries times after the session drops,
// waiting a jittered exponential delay starting at baseDelay.
func WithReconnect(maxRetries int, baseDelay time.Duration) Option {
	return WithReconnectBackoff(maxRetries, backoff.NewJitter(baseDelay, 30*time.Second))
}

// WithReconnectBackoff is WithReconnect with an explicit delay strategy.
func WithReconnectBackoff(maxRetries int, s backoff.Strategy) Option {
	return func(c *Client) {
		c.reconnect = true
		c.maxRetries = maxRetries
		c.delays = s
	}
}
