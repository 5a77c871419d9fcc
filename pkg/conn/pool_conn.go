package conn

import (
	"sync"
	"sync/atomic"
	"time"

	qerrors "github.com/pzverkov/gotls/internal/errors"
)

// pooledConn is the pool's internal bookkeeping around one Connection.
type pooledConn struct {
	conn      *Connection
	pool      *Pool
	createdAt time.Time
	lastUsed  time.Time
	useMu     sync.Mutex // protects lastUsed
	inUse     atomic.Bool
	unhealthy atomic.Bool
}

func newPooledConn(c *Connection, pool *Pool) *pooledConn {
	now := time.Now()
	return &pooledConn{conn: c, pool: pool, createdAt: now, lastUsed: now}
}

func (pc *pooledConn) markUsed() {
	pc.useMu.Lock()
	pc.lastUsed = time.Now()
	pc.useMu.Unlock()
}

func (pc *pooledConn) getLastUsed() time.Time {
	pc.useMu.Lock()
	defer pc.useMu.Unlock()
	return pc.lastUsed
}

func (pc *pooledConn) age() time.Duration { return time.Since(pc.createdAt) }

func (pc *pooledConn) idleTime() time.Duration { return time.Since(pc.getLastUsed()) }

// PoolConn is the handle Acquire returns: a Connection on loan from a Pool.
type PoolConn struct {
	pc       *pooledConn
	released atomic.Bool
}

func newPoolConn(pc *pooledConn) *PoolConn {
	return &PoolConn{pc: pc}
}

// Connection returns the underlying Connection for this loan. Returns nil
// once the loan has been released or closed.
func (c *PoolConn) Connection() *Connection {
	if c.released.Load() {
		return nil
	}
	return c.pc.conn
}

// Write delegates to the underlying Connection.
func (c *PoolConn) Write(p []byte) (int, error) {
	if c.released.Load() {
		return 0, qerrors.ErrPoolConnReleased
	}
	return c.pc.conn.Write(p)
}

// Read delegates to the underlying Connection.
func (c *PoolConn) Read(max int) ([]byte, error) {
	if c.released.Load() {
		return nil, qerrors.ErrPoolConnReleased
	}
	return c.pc.conn.Read(max)
}

// Release returns the connection to the pool for reuse. The connection
// should be Established and healthy when released.
func (c *PoolConn) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil // already released, idempotent
	}
	c.pc.markUsed()
	return c.pc.pool.release(c.pc)
}

// Close marks the connection unhealthy and removes it from the pool. Use
// this instead of Release when the connection hit an error or is in an
// unknown state.
func (c *PoolConn) Close() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil // already released/closed
	}
	c.pc.unhealthy.Store(true)
	return c.pc.pool.release(c.pc)
}

// CreatedAt returns when the underlying connection was established.
func (c *PoolConn) CreatedAt() time.Time { return c.pc.createdAt }
