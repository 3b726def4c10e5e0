// Package config holds the tunable constants of the proxy: the per-socket
// receive buffer bound, the admission semaphore width, and the cache's
// byte budget. Field grouping mirrors conf.Bootstrap/conf.Server in the
// proxy's ancestor codebase, trimmed to what this core actually needs.
package config

import "time"

// Defaults reproduce the suggested constants from the proxy's design:
// a 4096-byte request buffer, 400 concurrent clients, and a cache capacity
// distinct from MAX_BYTES (the source's conflation of the two is treated
// as a bug, not a behavior to replicate).
const (
	DefaultMaxBytes      = 4096
	DefaultMaxClients    = 400
	DefaultCacheCapacity = 200 << 20 // 200 MiB
	DefaultCacheOverhead = 64        // per-entry bookkeeping charge
	DefaultDialTimeout   = 10 * time.Second
)

// Config is the fully-resolved set of runtime knobs for one proxy process.
type Config struct {
	// Port is the TCP port the proxy listens on. Required, positional on
	// the command line.
	Port int

	// MaxBytes bounds a single client request and each origin read chunk.
	MaxBytes int

	// MaxClients bounds the number of concurrently in-flight workers.
	MaxClients int

	// CacheCapacityBytes is the LRU cache's total byte budget; each entry is
	// charged its payload length plus CacheEntryOverhead against it.
	CacheCapacityBytes int64

	// CacheEntryOverhead is charged per cached entry in addition to its
	// payload length, applied symmetrically on insertion and eviction.
	CacheEntryOverhead int64

	// DialTimeout bounds how long the upstream fetcher waits to connect.
	DialTimeout time.Duration

	// LogLevel controls the verbosity of the structured logger.
	LogLevel string

	// MetricsAddr, if non-empty, serves Prometheus metrics on this address
	// in addition to the proxy's listening socket. Empty disables it.
	MetricsAddr string
}

// Default returns a Config with every ambient knob at its suggested value,
// and Port left unset (the caller must fill it in from the CLI).
func Default() *Config {
	return &Config{
		MaxBytes:           DefaultMaxBytes,
		MaxClients:         DefaultMaxClients,
		CacheCapacityBytes: DefaultCacheCapacity,
		CacheEntryOverhead: DefaultCacheOverhead,
		DialTimeout:        DefaultDialTimeout,
		LogLevel:           "info",
	}
}
