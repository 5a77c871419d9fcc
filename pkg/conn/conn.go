// Package conn implements §4.11 Connection: the thin orchestrator that owns
// a HandshakeFSM until Established and then routes application bytes
// through the record layer.
//
// Connection drives a pkg/handshake.ClientHandshake/ServerHandshake to
// Established and then reads/writes raw TLSPlaintext application_data
// records directly through pkg/record.RecordLayer, the way §4.11 describes
// the engine's external surface: handshake_client/handshake_server/read/
// write/close.
package conn

import (
	"net"
	"sync"
	"time"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/cipherstate"
	"github.com/pzverkov/gotls/pkg/crypto"
	"github.com/pzverkov/gotls/pkg/handshake"
	"github.com/pzverkov/gotls/pkg/kex"
	"github.com/pzverkov/gotls/pkg/protocol"
	"github.com/pzverkov/gotls/pkg/record"
	"github.com/pzverkov/gotls/pkg/session"
)

// Connection is a single TLS connection: record layer plus negotiated
// handshake state. Not safe for concurrent Read and Write from multiple
// goroutines beyond the usual one-reader/one-writer split (§5: "single-
// threaded cooperative per connection").
type Connection struct {
	netConn net.Conn
	rl      *record.RecordLayer

	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.RWMutex
	closed  bool
	result  *handshake.Result

	// rekeyMu guards the TLS 1.3 application traffic secrets against a
	// concurrent Read (processing a peer KeyUpdate) and Write (calling
	// UpdateKeys) racing to advance the same secret twice.
	rekeyMu         sync.Mutex
	ks              *kex.KeySchedule
	suite           constants.CipherSuite
	writeAppSecret  []byte
	readAppSecret   []byte

	ignoreAbruptClose bool
	cache             *session.SessionCache
}

// Config bundles what New needs beyond handshake.Config: the underlying
// net.Conn and optional timeouts/session cache.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SessionCache *session.SessionCache
}

// New wraps conn in a Connection, ready for HandshakeClient or
// HandshakeServer. The record layer starts in plaintext (no cipher
// installed) as every handshake does (§4.4).
func New(netConn net.Conn, cfg Config) *Connection {
	rl := record.New(netConn, constants.ParseVersion(3, 1))
	if cfg.ReadTimeout > 0 {
		rl.SetReadDeadline(cfg.ReadTimeout)
	}
	if cfg.WriteTimeout > 0 {
		rl.SetWriteDeadline(cfg.WriteTimeout)
	}
	return &Connection{
		netConn:      netConn,
		rl:           rl,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		cache:        cfg.SessionCache,
	}
}

// HandshakeClient runs the client side of the handshake to completion,
// §4.11's handshake_client(settings).
func (c *Connection) HandshakeClient(hcfg handshake.Config) error {
	result, err := handshake.RunClient(c.rl, &hcfg)
	if err != nil {
		c.fail(err)
		return err
	}
	c.mu.Lock()
	c.result = result
	c.ignoreAbruptClose = hcfg.IgnoreAbruptClose
	c.mu.Unlock()
	c.seedRekeyState(result, result.ClientAppSecret, result.ServerAppSecret)

	if c.cache != nil && len(result.SessionID) > 0 {
		c.cache.Put(session.New(result.SessionID, result.Version, result.CipherSuite, result.MasterSecret))
	}
	return nil
}

// HandshakeServer runs the server side of the handshake to completion,
// §4.11's handshake_server(settings).
func (c *Connection) HandshakeServer(hcfg handshake.Config) error {
	result, err := handshake.RunServer(c.rl, &hcfg)
	if err != nil {
		c.fail(err)
		return err
	}
	c.mu.Lock()
	c.result = result
	c.ignoreAbruptClose = hcfg.IgnoreAbruptClose
	c.mu.Unlock()
	c.seedRekeyState(result, result.ServerAppSecret, result.ClientAppSecret)

	if c.cache != nil && len(result.SessionID) > 0 {
		c.cache.Put(session.New(result.SessionID, result.Version, result.CipherSuite, result.MasterSecret))
	}
	return nil
}

// seedRekeyState records the traffic secrets KeyUpdate advances from. Only
// TLS 1.3 reaches Established with a non-nil KeySchedule/app secret pair
// (§4.6.3's KeyUpdate has no <=1.2 equivalent); for a legacy connection this
// is a no-op and UpdateKeys/incoming KeyUpdate both fail closed.
func (c *Connection) seedRekeyState(result *handshake.Result, writeSecret, readSecret []byte) {
	if result.KeySchedule == nil || len(writeSecret) == 0 {
		return
	}
	c.rekeyMu.Lock()
	defer c.rekeyMu.Unlock()
	c.ks = result.KeySchedule
	c.suite = result.CipherSuite
	c.writeAppSecret = append([]byte(nil), writeSecret...)
	c.readAppSecret = append([]byte(nil), readSecret...)
}

// Result returns the negotiated handshake outcome, or nil before Established.
func (c *Connection) Result() *handshake.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// Write sends application_data, §4.11's write(bytes). Large payloads are
// split across multiple TLSPlaintext records by RecordLayer.WriteRecord.
func (c *Connection) Write(p []byte) (int, error) {
	if c.isClosed() {
		return 0, qerrors.ErrClosedConnection
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.rl.WriteRecord(constants.ContentTypeApplicationData, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read returns the next chunk of application_data, §4.11's read(max, min).
// Non-application-data records received in the Established state are
// handled transparently: Alert surfaces as an error (close_notify closes
// the connection and returns io.EOF-equivalent qerrors.ErrClosedConnection);
// a Handshake record carrying KeyUpdate advances the read traffic secret
// (§4.6.3) and the loop continues to the next record; a client-side
// NewSessionTicket is folded into the Session record held by the
// Connection's SessionCache for later PSK resumption.
func (c *Connection) Read(max int) ([]byte, error) {
	if c.isClosed() {
		return nil, qerrors.ErrClosedConnection
	}
	for {
		ct, payload, err := c.rl.ReadRecord()
		if err != nil {
			c.fail(err)
			return nil, err
		}
		switch ct {
		case constants.ContentTypeApplicationData:
			if max > 0 && len(payload) > max {
				payload = payload[:max]
			}
			return payload, nil
		case constants.ContentTypeAlert:
			return nil, c.handleAlert(payload)
		case constants.ContentTypeHandshake:
			if err := c.handlePostHandshakeMessage(payload); err != nil {
				c.fail(err)
				return nil, err
			}
			// NewSessionTicket/KeyUpdate are not the application data the
			// caller asked for; keep reading for the next record.
			continue
		default:
			err := qerrors.NewProtocolError("conn.read", qerrors.ErrUnexpectedMessage)
			c.fail(err)
			return nil, err
		}
	}
}

// handlePostHandshakeMessage dispatches a ContentTypeHandshake record
// received after Established: KeyUpdate (RFC 8446 §4.6.3) advances the read
// traffic secret, NewSessionTicket (§4.6.1) is folded into the cached
// Session for future resumption, and HelloRequest is answered with a
// no_renegotiation warning alert. Any other type is left unparsed.
func (c *Connection) handlePostHandshakeMessage(framed []byte) error {
	if len(framed) < 4 {
		return qerrors.NewProtocolError("conn.posthandshake", qerrors.ErrDecodeError)
	}
	msgType := constants.HandshakeType(framed[0])
	body := framed[4:]

	if msgType == constants.HandshakeTypeNewSessionTicket {
		return c.handleNewSessionTicket(body)
	}
	if msgType == constants.HandshakeTypeHelloRequest {
		alert := []byte{byte(constants.AlertLevelWarning), byte(constants.AlertNoRenegotiation)}
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.rl.WriteRecord(constants.ContentTypeAlert, alert)
	}
	if msgType != constants.HandshakeTypeKeyUpdate {
		return nil
	}

	var ku protocol.KeyUpdateBody
	if _, err := ku.Unmarshal(body); err != nil {
		return qerrors.NewProtocolError("conn.keyupdate", err)
	}
	if err := c.rekeyRead(); err != nil {
		return err
	}
	if !ku.RequestUpdate {
		return nil
	}
	// RFC 8446 §4.6.3: sending a KeyUpdate always advances the sender's own
	// write keys, whether the message is the initial request or this reply.
	if err := c.sendKeyUpdate(false); err != nil {
		return err
	}
	return c.rekeyWrite()
}

// handleNewSessionTicket derives the ticket's resumption PSK (RFC 8446
// §4.6.1: PSK = HKDF-Expand-Label(resumption_master_secret, "resumption",
// ticket_nonce, Hash.length)) and folds it into the SessionCache entry this
// connection's handshake already stored under result.SessionID. Only a
// client expects NewSessionTicket; a server receiving one is a protocol
// violation the caller already rejected earlier in the handshake, so this
// is a no-op outside the client/TLS1.3/cache-configured case.
func (c *Connection) handleNewSessionTicket(body []byte) error {
	c.mu.RLock()
	result := c.result
	cache := c.cache
	c.mu.RUnlock()

	if cache == nil || result == nil || !result.IsClient || len(result.ResumptionMaster) == 0 {
		return nil
	}

	var nst protocol.NewSessionTicketBody
	if _, err := nst.Unmarshal(body); err != nil {
		return qerrors.NewProtocolError("conn.newsessionticket", err)
	}

	psk := result.KeySchedule.ExpandLabel(result.ResumptionMaster, "resumption", nst.Nonce, result.KeySchedule.HashLen())
	ticket := session.Ticket{
		Label:    append([]byte(nil), nst.Ticket...),
		Lifetime: nst.LifetimeSeconds,
		AgeAdd:   nst.AgeAdd,
		IssuedAt: time.Now(),
		PSK:      psk,
	}

	sess, err := cache.Get(result.SessionID)
	if err != nil {
		sess = session.New(result.SessionID, result.Version, result.CipherSuite, result.MasterSecret)
	}
	sess.AddTicket(ticket)
	cache.Put(sess)
	return nil
}

// SendNewSessionTicket issues a resumption ticket to the peer (RFC 8446
// §4.6.1), server side only: te seals this connection's session into the
// opaque blob the wire message's Ticket field carries, and lifetimeSeconds
// bounds how long the peer may offer it back. Triggered explicitly by the
// caller rather than automatically, since §4.9 leaves ticket issuance
// policy (how many, how often) to the application.
func (c *Connection) SendNewSessionTicket(te *session.TicketEncrypter, lifetimeSeconds uint32) error {
	c.mu.RLock()
	result := c.result
	c.mu.RUnlock()

	if result == nil || result.IsClient || len(result.ResumptionMaster) == 0 {
		return qerrors.NewProtocolError("conn.newsessionticket", qerrors.ErrInternalError)
	}

	nonce, err := crypto.SecureRandomBytes(8)
	if err != nil {
		return err
	}
	ageAddBytes, err := crypto.SecureRandomBytes(4)
	if err != nil {
		return err
	}

	sess := session.New(result.SessionID, result.Version, result.CipherSuite, result.ResumptionMaster)
	ticketBlob, err := te.Seal(sess, time.Now())
	if err != nil {
		return err
	}

	nst := protocol.NewSessionTicketBody{
		LifetimeSeconds: lifetimeSeconds,
		AgeAdd:          uint32(ageAddBytes[0])<<24 | uint32(ageAddBytes[1])<<16 | uint32(ageAddBytes[2])<<8 | uint32(ageAddBytes[3]),
		Nonce:           nonce,
		Ticket:          ticketBlob,
	}
	framed, err := protocol.HandshakeMessageFromBody(&nst)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.rl.WriteRecord(constants.ContentTypeHandshake, framed)
}

// UpdateKeys triggers an application-initiated KeyUpdate (§4.6.3): the
// write-direction traffic secret and cipher are advanced and a KeyUpdate
// handshake message is sent. If requestPeerUpdate is set, the peer is asked
// to update its own write key (our read key) in response.
func (c *Connection) UpdateKeys(requestPeerUpdate bool) error {
	if c.isClosed() {
		return qerrors.ErrClosedConnection
	}
	if err := c.sendKeyUpdate(requestPeerUpdate); err != nil {
		return err
	}
	return c.rekeyWrite()
}

func (c *Connection) sendKeyUpdate(requestUpdate bool) error {
	framed, err := protocol.HandshakeMessageFromBody(&protocol.KeyUpdateBody{RequestUpdate: requestUpdate})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.rl.WriteRecord(constants.ContentTypeHandshake, framed)
}

// rekeyWrite and rekeyRead each advance one direction's traffic secret via
// kex.KeySchedule.NextTrafficSecret and install the freshly derived AEAD
// cipher into the record layer, the way the handshake's own Established
// transition seeds the first pair of keys (pkg/handshake's EncryptedExtensions/
// Finished steps call the same TrafficKeyIV + cipherstate.NewAEADCipherState
// sequence through handshake.AEADParams).
func (c *Connection) rekeyWrite() error {
	c.rekeyMu.Lock()
	defer c.rekeyMu.Unlock()
	if c.ks == nil {
		return qerrors.NewProtocolError("conn.keyupdate", qerrors.ErrUnexpectedMessage)
	}
	next := c.ks.NextTrafficSecret(c.writeAppSecret)
	keyLen, ivLen := handshake.AEADParams(c.suite)
	key, iv := c.ks.TrafficKeyIV(next, keyLen, ivLen)
	cipher, err := cipherstate.NewAEADCipherState(c.suite, key, iv)
	if err != nil {
		return err
	}
	c.rl.SetWriteCipher(cipher)
	c.writeAppSecret = next
	return nil
}

func (c *Connection) rekeyRead() error {
	c.rekeyMu.Lock()
	defer c.rekeyMu.Unlock()
	if c.ks == nil {
		return qerrors.NewProtocolError("conn.keyupdate", qerrors.ErrUnexpectedMessage)
	}
	next := c.ks.NextTrafficSecret(c.readAppSecret)
	keyLen, ivLen := handshake.AEADParams(c.suite)
	key, iv := c.ks.TrafficKeyIV(next, keyLen, ivLen)
	cipher, err := cipherstate.NewAEADCipherState(c.suite, key, iv)
	if err != nil {
		return err
	}
	c.rl.SetReadCipher(cipher)
	c.readAppSecret = next
	return nil
}

func (c *Connection) handleAlert(payload []byte) error {
	if len(payload) < 2 {
		err := qerrors.NewProtocolError("conn.alert", qerrors.ErrDecodeError)
		c.fail(err)
		return err
	}
	level := constants.AlertLevel(payload[0])
	desc := constants.AlertDescription(payload[1])
	if desc == constants.AlertCloseNotify {
		c.markClosed()
		return qerrors.ErrClosedConnection
	}
	err := qerrors.NewProtocolError("conn.alert", &qerrors.RemoteAlertError{Level: level, Description: desc})
	c.fail(err)
	return err
}

// Close performs the close_notify exchange (§4.11), unless IgnoreAbruptClose
// was set in the handshake Config, in which case it just tears down the
// transport.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ignoreAbrupt := c.ignoreAbruptClose
	established := c.result != nil
	c.mu.Unlock()

	if established && !ignoreAbrupt {
		alert := []byte{byte(constants.AlertLevelWarning), byte(constants.AlertCloseNotify)}
		c.writeMu.Lock()
		_ = c.rl.WriteRecord(constants.ContentTypeAlert, alert)
		c.writeMu.Unlock()
	}

	return c.netConn.Close()
}

func (c *Connection) fail(err error) {
	if qerrors.Is(err, qerrors.ErrClosedConnection) {
		c.markClosed()
	}
}

func (c *Connection) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Connection) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// LocalAddr returns the underlying connection's local address.
func (c *Connection) LocalAddr() net.Addr { return c.netConn.LocalAddr() }

// RemoteAddr returns the underlying connection's remote address.
func (c *Connection) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }
