package zoomgraph

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "badger"
	addrs    []string
	password string
	path     string

	keyPrefix string

	maxPageSize    int
	maxSearchLimit int
	maxNeighbors   int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey configures the client to read from a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to read from a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithBadger configures the client to read an embedded Badger directory
// written by a single-node build.
func WithBadger(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "badger"
		c.path = path
	})
}

// WithKeyPrefix sets the key namespace the snapshots were published under.
// Default: "zoomgraph:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithMaxPageSize caps ExpandTopic page sizes. Default: 1000.
func WithMaxPageSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxPageSize = n
	})
}

// WithMaxSearchLimit caps Search result counts. Default: 100.
func WithMaxSearchLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxSearchLimit = n
	})
}

// WithMaxNeighbors caps Neighbors result counts. Default: 100.
func WithMaxNeighbors(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxNeighbors = n
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
