// Package gotls implements a TLS 1.0 through 1.3 protocol engine, including
// a post-quantum hybrid key exchange group for TLS 1.3.
//
// gotls speaks the handshake, record, and alert layers described by RFC
// 2246, RFC 4346, RFC 5246, and RFC 8446, plus a hybrid X25519+ML-KEM-1024
// key-exchange group (NIST FIPS 203) negotiated under
// TLS_AES_256_GCM_SHA384 for defense-in-depth against both classical and
// quantum attacks.
//
// # Quick Start
//
// For a complete client/server connection:
//
//	import "github.com/pzverkov/gotls/pkg/conn"
//
//	// Server
//	listener := conn.Listen(ln, connCfg, handshakeCfg, conn.RateLimitConfig{}, nil)
//	c, _ := listener.Accept()
//	data, _ := c.Read(4096)
//
//	// Client
//	client, _ := conn.Dial("tcp", "localhost:8443", connCfg, handshakeCfg)
//	client.Write([]byte("Hello!"))
//
// For low-level hybrid key exchange:
//
//	import "github.com/pzverkov/gotls/pkg/kex"
//
//	ke, _ := kex.New(constants.GroupX25519MLKEM1024)
//	clientShare := ke.PublicShare()
//	serverShare, secret, _ := kex.Encapsulate(clientShare)
//	sameSecret, _ := ke.SharedSecret(serverShare)
//
// # Package Structure
//
// The library is organized into several packages:
//
//   - pkg/kex: Key-exchange groups, including the hybrid X25519+ML-KEM-1024 group
//   - pkg/crypto: Low-level cryptographic primitives (ML-KEM, X25519, AEAD, self-tests)
//   - pkg/handshake: Client and server handshake state machines
//   - pkg/record: Record layer framing, fragmentation, and MAC/AEAD protection
//   - pkg/cipherstate: Per-direction bulk cipher state (stream/block/AEAD)
//   - pkg/session: Session IDs, session cache, and session tickets
//   - pkg/conn: Connection, Listener, and client-side connection Pool
//   - pkg/protocol: Wire protocol message definitions and encoding
//   - pkg/metrics: Logging, metrics, tracing, and health-check surfaces
//   - internal/constants: Protocol versions, cipher suites, and extension IDs
//   - internal/errors: Alert-mapped error taxonomy
//
// # Security Properties
//
// The hybrid key-exchange group provides:
//
//   - Post-quantum security: ML-KEM-1024 (NIST Category 5, ~256-bit security)
//   - Classical security: X25519 ECDH (128-bit security)
//   - Hybrid guarantee: secure if EITHER algorithm is secure
//   - Forward secrecy: ephemeral key shares generated for each handshake
//   - Authenticated encryption: AES-256-GCM or ChaCha20-Poly1305
//   - Replay protection: per-direction record sequence numbers bound into each AEAD nonce
//
// # Testing
//
// The library includes comprehensive tests:
//
//	go test ./...                        # All tests
//	go test -run POST ./pkg/crypto        # Power-on self-test Known Answer Tests
//	go test -bench=. ./test/benchmark     # Benchmarks
//
// For more information, see: https://github.com/pzverkov/gotls
package gotls
