package conn

import (
	"net"
	"sync"
	"time"

	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/handshake"
)

// RateLimitConfig bounds how many concurrent connections one remote IP may
// hold open and how fast new handshakes may start, generalized from the
// teacher's tunnel.RateLimitConfig (pkg/tunnel/limiter.go): a listening TLS
// endpoint needs the same protection against a single peer or a handshake
// flood that the CH-KEM tunnel did, independent of what's inside the
// handshake itself.
type RateLimitConfig struct {
	// MaxConnectionsPerIP is the maximum number of concurrent connections
	// allowed from a single IP. 0 means no limit.
	MaxConnectionsPerIP int

	// HandshakeRateLimit is the maximum number of handshakes per second
	// allowed globally. 0 means no limit.
	HandshakeRateLimit float64

	// HandshakeBurst is the maximum burst of handshakes allowed. If 0,
	// defaults to 1 when HandshakeRateLimit is set.
	HandshakeBurst int
}

// IPRateLimiter tracks and limits the number of concurrent connections per IP.
type IPRateLimiter struct {
	mu          sync.Mutex
	connections map[string]int
	maxPerIP    int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(maxPerIP int) *IPRateLimiter {
	return &IPRateLimiter{connections: make(map[string]int), maxPerIP: maxPerIP}
}

// AllowConnection reports whether ip may open another connection, and if
// so, counts it.
func (l *IPRateLimiter) AllowConnection(ip string) bool {
	if l.maxPerIP <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connections[ip] >= l.maxPerIP {
		return false
	}
	l.connections[ip]++
	return true
}

// ReleaseConnection decrements the connection count for ip.
func (l *IPRateLimiter) ReleaseConnection(ip string) {
	if l.maxPerIP <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connections[ip] > 0 {
		l.connections[ip]--
		if l.connections[ip] == 0 {
			delete(l.connections, ip)
		}
	}
}

// HandshakeLimiter limits the global handshake rate with a token bucket.
type HandshakeLimiter struct {
	mu         sync.Mutex
	rate       float64
	burst      int
	tokens     float64
	lastRefill time.Time
}

// NewHandshakeLimiter creates a token-bucket limiter.
func NewHandshakeLimiter(rate float64, burst int) *HandshakeLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &HandshakeLimiter{rate: rate, burst: burst, tokens: float64(burst), lastRefill: time.Now()}
}

// AllowHandshake consumes one token if available.
func (l *HandshakeLimiter) AllowHandshake() bool {
	if l.rate <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.lastRefill = now
	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

// RateLimitObserver receives notifications when a Listener rejects a
// connection for exceeding RateLimitConfig, independent of PoolObserver's
// pool-internal events.
type RateLimitObserver interface {
	OnConnectionRateLimit(remoteIP string)
	OnHandshakeRateLimit(remoteIP string)
}

// Listener accepts incoming TLS connections, applying rate limits before
// handing a raw net.Conn to HandshakeServer.
type Listener struct {
	listener net.Listener
	connCfg  Config
	hcfg     handshake.Config

	ipLimiter        *IPRateLimiter
	handshakeLimiter *HandshakeLimiter
	observer         RateLimitObserver
}

// Listen wraps an existing net.Listener. handshakeCfg is applied to every
// accepted connection's HandshakeServer call. observer may be nil.
func Listen(ln net.Listener, connCfg Config, handshakeCfg handshake.Config, rateLimit RateLimitConfig, observer RateLimitObserver) *Listener {
	l := &Listener{listener: ln, connCfg: connCfg, hcfg: handshakeCfg, observer: observer}
	if rateLimit.MaxConnectionsPerIP > 0 {
		l.ipLimiter = NewIPRateLimiter(rateLimit.MaxConnectionsPerIP)
	}
	if rateLimit.HandshakeRateLimit > 0 {
		l.handshakeLimiter = NewHandshakeLimiter(rateLimit.HandshakeRateLimit, rateLimit.HandshakeBurst)
	}
	return l
}

// Accept waits for the next connection, runs the server handshake, and
// returns an established Connection.
func (l *Listener) Accept() (*Connection, error) {
	netConn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}

	remoteIP := extractRemoteIP(netConn)

	if l.ipLimiter != nil {
		if !l.ipLimiter.AllowConnection(remoteIP) {
			_ = netConn.Close()
			if l.observer != nil {
				l.observer.OnConnectionRateLimit(remoteIP)
			}
			return nil, qerrors.NewProtocolError("conn.listener", qerrors.ErrInternalError)
		}
		netConn = &rateLimitedConn{Conn: netConn, limiter: l.ipLimiter, ip: remoteIP}
	}

	if l.handshakeLimiter != nil && !l.handshakeLimiter.AllowHandshake() {
		_ = netConn.Close()
		if l.observer != nil {
			l.observer.OnHandshakeRateLimit(remoteIP)
		}
		return nil, qerrors.NewProtocolError("conn.listener", qerrors.ErrInternalError)
	}

	c := New(netConn, l.connCfg)
	if err := c.HandshakeServer(l.hcfg); err != nil {
		_ = netConn.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying listener.
func (l *Listener) Close() error { return l.listener.Close() }

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr { return l.listener.Addr() }

func extractRemoteIP(netConn net.Conn) string {
	if tcpAddr, ok := netConn.RemoteAddr().(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}
	host, _, err := net.SplitHostPort(netConn.RemoteAddr().String())
	if err == nil {
		return host
	}
	return netConn.RemoteAddr().String()
}

// rateLimitedConn wraps a net.Conn to release its IP rate-limit slot on Close.
type rateLimitedConn struct {
	net.Conn
	limiter   *IPRateLimiter
	ip        string
	closeOnce sync.Once
}

func (c *rateLimitedConn) Close() error {
	err := c.Conn.Close()
	c.closeOnce.Do(func() {
		c.limiter.ReleaseConnection(c.ip)
	})
	return err
}

// Dial connects to address and runs the client handshake.
func Dial(network, address string, connCfg Config, handshakeCfg handshake.Config) (*Connection, error) {
	netConn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	c := New(netConn, connCfg)
	if err := c.HandshakeClient(handshakeCfg); err != nil {
		_ = netConn.Close()
		return nil, err
	}
	return c, nil
}
