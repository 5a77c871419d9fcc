package conn

import (
	"context"
	"net"
	"sync"
	"time"

	qerrors "github.com/pzverkov/gotls/internal/errors"
)

// Pool manages a set of reusable client Connections to one address. It
// amortizes handshake cost across requests the way a database connection
// pool amortizes the cost of a fresh TCP+auth round trip, pooling §4.11
// Connections established via Dial/HandshakeClient.
type Pool struct {
	network string
	address string
	config  PoolConfig

	mu      sync.Mutex
	conns   []*pooledConn // all connections (idle + in-use)
	idle    []*pooledConn // available connections (LIFO for cache locality)
	waiters []chan *pooledConn
	closed  bool
	stats   *poolStats

	healthCtx    context.Context
	healthCancel context.CancelFunc
	healthWg     sync.WaitGroup
}

// NewPool creates a connection pool for network/address. The pool is not
// started until Start is called.
func NewPool(network, address string, config PoolConfig) (*Pool, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Pool{
		network: network,
		address: address,
		config:  config,
		conns:   make([]*pooledConn, 0, config.MaxConns),
		idle:    make([]*pooledConn, 0, config.MaxConns),
		waiters: make([]chan *pooledConn, 0),
		stats:   newPoolStats(),
	}, nil
}

// Start pre-establishes MinConns connections and, if configured, launches
// the background health checker.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return qerrors.ErrPoolClosed
	}
	p.mu.Unlock()

	for i := 0; i < p.config.MinConns; i++ {
		pc, err := p.createConn(ctx)
		if err != nil {
			continue // try again on the next health-check pass
		}
		p.mu.Lock()
		p.conns = append(p.conns, pc)
		p.idle = append(p.idle, pc)
		p.stats.setTotalCount(int64(len(p.conns)))
		p.stats.setIdleCount(int64(len(p.idle)))
		p.mu.Unlock()
	}

	if p.config.HealthCheckInterval > 0 {
		p.healthCtx, p.healthCancel = context.WithCancel(context.Background())
		p.healthWg.Add(1)
		go p.healthChecker()
	}

	return nil
}

// Close closes every connection in the pool and rejects further Acquires.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	if p.healthCancel != nil {
		p.healthCancel()
	}

	for _, ch := range p.waiters {
		close(ch)
	}
	p.waiters = nil

	connsToClose := make([]*pooledConn, len(p.conns))
	copy(connsToClose, p.conns)
	p.conns = nil
	p.idle = nil
	p.mu.Unlock()

	p.healthWg.Wait()

	for _, pc := range connsToClose {
		_ = pc.conn.Close()
		if p.config.Observer != nil {
			p.config.Observer.OnConnectionClosed("pool_closed")
		}
	}

	return nil
}

// Acquire gets a connection from the pool, waiting up to WaitTimeout if the
// pool is at MaxConns and none is idle.
func (p *Pool) Acquire(ctx context.Context) (*PoolConn, error) {
	startTime := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, qerrors.ErrPoolClosed
	}

	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if p.isHealthy(pc) {
			pc.inUse.Store(true)
			p.stats.recordAcquire(time.Since(startTime), true)
			p.mu.Unlock()

			if p.config.Observer != nil {
				p.config.Observer.OnAcquire(time.Since(startTime), true)
			}
			return newPoolConn(pc), nil
		}

		p.removeConnLocked(pc)
		go func(pc *pooledConn) {
			_ = pc.conn.Close()
			if p.config.Observer != nil {
				p.config.Observer.OnConnectionClosed("unhealthy")
			}
		}(pc)
	}

	if p.config.MaxConns == 0 || len(p.conns) < p.config.MaxConns {
		p.mu.Unlock()
		return p.createAndAcquire(ctx, startTime)
	}

	if p.config.WaitTimeout == 0 {
		p.mu.Unlock()
		p.stats.recordAcquireTimeout()
		if p.config.Observer != nil {
			p.config.Observer.OnAcquireTimeout()
		}
		return nil, qerrors.ErrPoolExhausted
	}

	ch := make(chan *pooledConn, 1)
	p.waiters = append(p.waiters, ch)
	p.stats.incrementWaiting()
	p.mu.Unlock()

	timeout := p.config.WaitTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case pc := <-ch:
		p.stats.decrementWaiting()
		if pc == nil {
			return nil, qerrors.ErrPoolClosed
		}

		if !p.isHealthy(pc) {
			p.mu.Lock()
			p.removeConnLocked(pc)
			p.mu.Unlock()
			go func() {
				_ = pc.conn.Close()
				if p.config.Observer != nil {
					p.config.Observer.OnConnectionClosed("unhealthy")
				}
			}()
			return p.Acquire(ctx)
		}

		pc.inUse.Store(true)
		p.stats.recordAcquire(time.Since(startTime), true)
		if p.config.Observer != nil {
			p.config.Observer.OnAcquire(time.Since(startTime), true)
		}
		return newPoolConn(pc), nil

	case <-timer.C:
		p.mu.Lock()
		p.removeWaiter(ch)
		p.mu.Unlock()
		p.stats.decrementWaiting()
		p.stats.recordAcquireTimeout()
		if p.config.Observer != nil {
			p.config.Observer.OnAcquireTimeout()
		}
		return nil, qerrors.ErrPoolTimeout

	case <-ctx.Done():
		p.mu.Lock()
		p.removeWaiter(ch)
		p.mu.Unlock()
		p.stats.decrementWaiting()
		p.stats.recordAcquireTimeout()
		if p.config.Observer != nil {
			p.config.Observer.OnAcquireTimeout()
		}
		return nil, ctx.Err()
	}
}

// TryAcquire attempts to get a connection without waiting, failing with
// ErrPoolExhausted if none is available.
func (p *Pool) TryAcquire() (*PoolConn, error) {
	p.mu.Lock()
	origTimeout := p.config.WaitTimeout
	p.config.WaitTimeout = 0
	p.mu.Unlock()

	conn, err := p.Acquire(context.Background())

	p.mu.Lock()
	p.config.WaitTimeout = origTimeout
	p.mu.Unlock()

	return conn, err
}

// Stats returns the current pool statistics.
func (p *Pool) Stats() PoolStatsSnapshot { return p.stats.Snapshot() }

// Size returns the current total number of connections (idle + in-use).
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// IdleCount returns the current number of idle connections.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// InUseCount returns the current number of in-use connections.
func (p *Pool) InUseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns) - len(p.idle)
}

func (p *Pool) release(pc *pooledConn) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		go func() { _ = pc.conn.Close() }()
		return nil
	}

	pc.inUse.Store(false)

	if pc.unhealthy.Load() {
		p.removeConnLocked(pc)
		p.stats.recordConnectionClosed(false)
		go func() {
			_ = pc.conn.Close()
			if p.config.Observer != nil {
				p.config.Observer.OnConnectionClosed("marked_unhealthy")
			}
		}()
		return nil
	}

	if len(p.waiters) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		pc.inUse.Store(true)
		ch <- pc
		return nil
	}

	p.idle = append(p.idle, pc)
	p.stats.recordRelease()

	if p.config.Observer != nil {
		p.config.Observer.OnRelease()
	}

	return nil
}

func (p *Pool) createAndAcquire(ctx context.Context, startTime time.Time) (*PoolConn, error) {
	pc, err := p.createConn(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = pc.conn.Close()
		return nil, qerrors.ErrPoolClosed
	}

	pc.inUse.Store(true)
	p.conns = append(p.conns, pc)
	p.stats.setTotalCount(int64(len(p.conns)))
	p.stats.recordAcquire(time.Since(startTime), false)
	p.mu.Unlock()

	if p.config.Observer != nil {
		p.config.Observer.OnAcquire(time.Since(startTime), false)
	}

	return newPoolConn(pc), nil
}

// createConn dials network/address and runs the client handshake (net.Dial
// + HandshakeClient), handing back a tracked pooledConn on success.
func (p *Pool) createConn(ctx context.Context) (*pooledConn, error) {
	dialStart := time.Now()

	var d net.Dialer
	if p.config.DialTimeout > 0 {
		d.Timeout = p.config.DialTimeout
	}

	netConn, err := d.DialContext(ctx, p.network, p.address)
	if err != nil {
		return nil, err
	}

	c := New(netConn, p.config.ConnConfig)
	if err := c.HandshakeClient(p.config.HandshakeConfig); err != nil {
		_ = netConn.Close()
		return nil, err
	}

	pc := newPooledConn(c, p)

	dialDuration := time.Since(dialStart)
	p.stats.recordConnectionCreated(dialDuration)

	if p.config.Observer != nil {
		p.config.Observer.OnConnectionCreated(dialDuration)
	}

	return pc, nil
}

// isHealthy reports whether pc may still be handed out: not marked
// unhealthy, within MaxLifetime/IdleTimeout, and still Established (not
// closed by a peer alert or local failure since it was last released).
func (p *Pool) isHealthy(pc *pooledConn) bool {
	if pc.unhealthy.Load() {
		return false
	}
	if p.config.MaxLifetime > 0 && pc.age() > p.config.MaxLifetime {
		return false
	}
	if p.config.IdleTimeout > 0 && pc.idleTime() > p.config.IdleTimeout {
		return false
	}
	return !pc.conn.isClosed() && pc.conn.Result() != nil
}

func (p *Pool) removeConnLocked(pc *pooledConn) {
	for i, c := range p.conns {
		if c == pc {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			break
		}
	}
	for i, c := range p.idle {
		if c == pc {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}
	p.stats.setTotalCount(int64(len(p.conns)))
	p.stats.setIdleCount(int64(len(p.idle)))
}

func (p *Pool) removeWaiter(ch chan *pooledConn) {
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func (p *Pool) healthChecker() {
	defer p.healthWg.Done()

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.healthCtx.Done():
			return
		case <-ticker.C:
			p.runHealthCheck()
		}
	}
}

func (p *Pool) runHealthCheck() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	var unhealthy []*pooledConn
	newIdle := make([]*pooledConn, 0, len(p.idle))

	for _, pc := range p.idle {
		healthy := p.isHealthy(pc)

		if p.config.Observer != nil {
			p.config.Observer.OnHealthCheck(healthy)
		}
		p.stats.recordHealthCheck(healthy)

		if healthy {
			newIdle = append(newIdle, pc)
		} else {
			unhealthy = append(unhealthy, pc)
		}
	}

	p.idle = newIdle
	for _, pc := range unhealthy {
		p.removeConnLocked(pc)
	}

	p.stats.setIdleCount(int64(len(p.idle)))
	p.mu.Unlock()

	for _, pc := range unhealthy {
		_ = pc.conn.Close()
		if p.config.Observer != nil {
			p.config.Observer.OnConnectionClosed("health_check_failed")
		}
	}

	p.mu.Lock()
	deficit := p.config.MinConns - len(p.conns)
	p.mu.Unlock()

	if deficit > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.DialTimeout)
		defer cancel()

		for i := 0; i < deficit; i++ {
			pc, err := p.createConn(ctx)
			if err != nil {
				break
			}
			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				_ = pc.conn.Close()
				return
			}
			p.conns = append(p.conns, pc)
			p.idle = append(p.idle, pc)
			p.stats.setTotalCount(int64(len(p.conns)))
			p.stats.setIdleCount(int64(len(p.idle)))
			p.mu.Unlock()
		}
	}

	if p.config.Observer != nil {
		p.config.Observer.OnPoolStats(p.stats.Snapshot())
	}
}
