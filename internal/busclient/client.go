// Package busclient wraps the NATS JetStream connection the runtime routes
// commands and events through, plus the three durable resources (two
// streams and one KV bucket) it provisions on startup.
package busclient

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
	Log  *zap.Logger
}

// Options configures the bus connection.
type Options struct {
	URL      string
	UserJWT  string
	UserSeed string
	Domain   string
}

// NewClient connects to NATS and initializes a JetStream context, honoring
// an optional JetStream domain and optional JWT/NKey credentials.
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	connOpts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}
	if opts.UserJWT != "" && opts.UserSeed != "" {
		connOpts = append(connOpts, nats.UserJWTAndSeed(opts.UserJWT, opts.UserSeed))
	}

	nc, err := nats.Connect(opts.URL, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var jsOpts []nats.JSOpt
	if opts.Domain != "" {
		jsOpts = append(jsOpts, nats.Domain(opts.Domain))
	}
	js, err := nc.JetStream(jsOpts...)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	logger.Info("bus connected", zap.String("url", opts.URL), zap.String("domain", opts.Domain))
	return &Client{Conn: nc, JS: js, Log: logger}, nil
}

// Close drains and closes the underlying NATS connection. Drain flushes all
// pending JetStream publish acknowledgments and outstanding subscription
// deliveries before closing, unlike Close which drops in-flight messages.
func (c *Client) Close() {
	if c.Conn == nil {
		return
	}
	if err := c.Conn.Drain(); err != nil {
		c.Conn.Close()
	}
}
