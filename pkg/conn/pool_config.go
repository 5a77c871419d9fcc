package conn

import (
	"errors"
	"time"

	"github.com/pzverkov/gotls/pkg/handshake"
)

// PoolConfig holds configuration for a client connection Pool. NewPool
// replaces every zero-valued numeric field below with its default, so a
// zero value never disables the corresponding limit or check.
type PoolConfig struct {
	// MinConns is the minimum number of connections to maintain.
	// The health checker dials new connections while the pool holds fewer.
	// Default: 1
	MinConns int

	// MaxConns is the maximum number of connections allowed.
	// Default: 10
	MaxConns int

	// IdleTimeout closes idle connections after this duration.
	// Default: 5 minutes
	IdleTimeout time.Duration

	// MaxLifetime is the maximum lifetime of a connection.
	// Connections older than this are discarded when next checked (on
	// Acquire or by the health checker); a connection in use is not closed.
	// Default: 30 minutes
	MaxLifetime time.Duration

	// HealthCheckInterval is the interval between health checks.
	// Health checks verify pooled connections are still Established.
	// Default: 30 seconds
	HealthCheckInterval time.Duration

	// WaitTimeout is how long Acquire waits for a connection when the pool
	// is exhausted. TryAcquire does not wait and fails with ErrPoolExhausted.
	// Default: 30 seconds
	WaitTimeout time.Duration

	// DialTimeout is the timeout for establishing new connections.
	// Default: 10 seconds
	DialTimeout time.Duration

	// ConnConfig is the Config passed to New for every pooled Connection.
	ConnConfig Config

	// HandshakeConfig is the handshake.Config used for every client
	// handshake the pool runs when it dials a new connection.
	HandshakeConfig handshake.Config

	// Observer receives pool lifecycle and statistics events.
	// Optional - if nil, events are not reported.
	Observer PoolObserver
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConns:            1,
		MaxConns:            10,
		IdleTimeout:         5 * time.Minute,
		MaxLifetime:         30 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
		WaitTimeout:         30 * time.Second,
		DialTimeout:         10 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *PoolConfig) Validate() error {
	if c.MinConns < 0 {
		return errors.New("pool: MinConns cannot be negative")
	}
	if c.MaxConns < 0 {
		return errors.New("pool: MaxConns cannot be negative")
	}
	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		return errors.New("pool: MinConns cannot exceed MaxConns")
	}
	if c.IdleTimeout < 0 {
		return errors.New("pool: IdleTimeout cannot be negative")
	}
	if c.MaxLifetime < 0 {
		return errors.New("pool: MaxLifetime cannot be negative")
	}
	if c.HealthCheckInterval < 0 {
		return errors.New("pool: HealthCheckInterval cannot be negative")
	}
	if c.WaitTimeout < 0 {
		return errors.New("pool: WaitTimeout cannot be negative")
	}
	if c.DialTimeout < 0 {
		return errors.New("pool: DialTimeout cannot be negative")
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func (c *PoolConfig) applyDefaults() {
	defaults := DefaultPoolConfig()

	if c.MinConns == 0 {
		c.MinConns = defaults.MinConns
	}
	if c.MaxConns == 0 {
		c.MaxConns = defaults.MaxConns
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = defaults.MaxLifetime
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = defaults.WaitTimeout
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
}

// PoolObserver receives connection-pool lifecycle and statistics events.
// Distinct from a per-Connection Observer (none exists yet on Connection
// itself): these events describe the pool's own acquire/release/health
// bookkeeping, not anything inside a single handshake or record stream.
type PoolObserver interface {
	OnAcquire(waitDuration time.Duration, reused bool)
	OnAcquireTimeout()
	OnRelease()
	OnConnectionCreated(dialDuration time.Duration)
	OnConnectionClosed(reason string)
	OnHealthCheck(healthy bool)
	OnPoolStats(stats PoolStatsSnapshot)
}
