package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/nodesync/pkg/rpc"
	"github.com/vango-dev/nodesync/pkg/snapshot"
	"github.com/vango-dev/nodesync/pkg/state"
)

// UIFactory populates the tree of a newly created UI.
type UIFactory func(tree *state.Tree) error

// Config holds server configuration.
type Config struct {
	// Address is the address to listen on (e.g., ":8080").
	Address string

	// IdleTimeout is how long a UI may go without a request before it is
	// closed by the cleanup loop.
	// Default: 10 minutes.
	IdleTimeout time.Duration

	// CleanupInterval is how often idle UIs are looked for.
	// Default: 1 minute.
	CleanupInterval time.Duration

	// MaxUIs caps the number of live UIs. Zero means no limit.
	MaxUIs int

	// MaxMessageSize is the largest websocket frame or HTTP body accepted.
	// Default: 64KB.
	MaxMessageSize int64

	// ReadTimeout bounds the wait for the next websocket frame.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds a single websocket write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadBufferSize and WriteBufferSize size the websocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the websocket Origin header.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Factory builds the initial tree of each new UI. Nil leaves it empty.
	Factory UIFactory

	// Dispatcher applies client batches.
	// Default: rpc.NewDispatcher().
	Dispatcher *rpc.Dispatcher

	// Store receives a snapshot of each UI when it is closed and is used to
	// restore it later. Nil disables snapshots.
	Store snapshot.Store

	// Gatherer is exposed on /metrics. Nil serves prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Logger is the base logger.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:         ":8080",
		IdleTimeout:     10 * time.Minute,
		CleanupInterval: time.Minute,
		MaxMessageSize:  64 * 1024,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     SameOriginCheck,
	}
}

// SameOriginCheck accepts requests without an Origin header and requests
// whose Origin host matches the Host header.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || r.Host == "" {
		return false
	}
	return u.Host == r.Host
}

// Clone returns a shallow copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults returns a copy with zero fields filled from DefaultConfig.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	out := c.Clone()
	d := DefaultConfig()
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = d.IdleTimeout
	}
	if out.CleanupInterval == 0 {
		out.CleanupInterval = d.CleanupInterval
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Dispatcher == nil {
		out.Dispatcher = rpc.NewDispatcher(rpc.WithLogger(out.Logger))
	}
	if out.Gatherer == nil {
		out.Gatherer = prometheus.DefaultGatherer
	}
	return out
}

// WithAddress sets the listen address.
func (c *Config) WithAddress(addr string) *Config {
	c.Address = addr
	return c
}

// WithIdleTimeout sets the idle timeout.
func (c *Config) WithIdleTimeout(d time.Duration) *Config {
	c.IdleTimeout = d
	return c
}

// WithMaxUIs sets the live UI limit.
func (c *Config) WithMaxUIs(max int) *Config {
	c.MaxUIs = max
	return c
}

// WithFactory sets the UI factory.
func (c *Config) WithFactory(f UIFactory) *Config {
	c.Factory = f
	return c
}

// WithDispatcher sets the batch dispatcher.
func (c *Config) WithDispatcher(d *rpc.Dispatcher) *Config {
	c.Dispatcher = d
	return c
}

// WithStore sets the snapshot store.
func (c *Config) WithStore(s snapshot.Store) *Config {
	c.Store = s
	return c
}

// WithGatherer sets the metrics gatherer.
func (c *Config) WithGatherer(g prometheus.Gatherer) *Config {
	c.Gatherer = g
	return c
}

// WithLogger sets the logger.
func (c *Config) WithLogger(l *slog.Logger) *Config {
	c.Logger = l
	return c
}
