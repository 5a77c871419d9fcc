// Package session implements §4.10's resumption artifact: a Session record
// capturing what a connection needs to skip a full handshake next time, and
// SessionCache, the process-wide store those records live in.
//
// A Session holds only what §4.10 actually needs to resume a TLS handshake:
// negotiated parameters, the resumption secret, and any NewSessionTicket
// messages accumulated along the way. It carries no cipher state of its
// own, unlike the connection that produced it.
package session

import (
	"sync"
	"time"

	"github.com/pzverkov/gotls/internal/constants"
)

// Session is what a completed handshake (pkg/handshake.Result, on the
// Established transition) hands to SessionCache for possible resumption.
type Session struct {
	mu sync.RWMutex

	// ID is the TLS 1.2-and-earlier session_id, or the identity this engine
	// indexes TLS 1.3 PSK-resumption entries by (a locally generated handle,
	// since TLS 1.3 has no wire session_id concept outside compatibility mode).
	ID []byte

	Version        constants.ProtocolVersion
	CipherSuite    constants.CipherSuite
	NegotiatedALPN string
	ServerName     string

	// MasterSecret is the legacy/TLS1.2 master_secret for <=1.2 resumption,
	// or the TLS 1.3 resumption_master_secret tree node for PSK derivation.
	MasterSecret []byte

	// Tickets holds every NewSessionTicket accumulated on this session so
	// far (§4.9's "accumulated into the live Session's tickets list, then
	// propagated to SessionCache on write"); a TLS 1.3 session may receive
	// several before the connection closes.
	Tickets []Ticket

	CreatedAt    time.Time
	lastAccessed time.Time
}

// Ticket is one NewSessionTicket's resumption state (RFC 8446 §4.6.1).
type Ticket struct {
	Label      []byte // ticket nonce-derived identity sent back by the client
	Lifetime   uint32 // seconds, server-advertised
	AgeAdd     uint32
	IssuedAt   time.Time
	PSK        []byte // resumption PSK derived from resumption_master_secret + Label
	MaxEarlyData uint32
}

// New creates a fresh Session record. masterSecret is copied, not retained,
// so the caller's buffer (typically zeroized after a handshake finishes) is
// not shared with the cache.
func New(id []byte, version constants.ProtocolVersion, suite constants.CipherSuite, masterSecret []byte) *Session {
	now := time.Now()
	s := &Session{
		ID:          append([]byte(nil), id...),
		Version:     version,
		CipherSuite: suite,
		MasterSecret: append([]byte(nil), masterSecret...),
		CreatedAt:    now,
		lastAccessed: now,
	}
	return s
}

// AddTicket appends a NewSessionTicket's resumption state. Safe for
// concurrent use if the owning Connection hands tickets off from a
// different goroutine than the one reading via SessionCache.
func (s *Session) AddTicket(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tickets = append(s.Tickets, t)
}

// TicketFor returns the ticket matching label, used when a client presents
// a PSK identity in its ClientHello's pre_shared_key extension.
func (s *Session) TicketFor(label []byte) (Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.Tickets {
		if bytesEqual(t.Label, label) {
			return t, true
		}
	}
	return Ticket{}, false
}

// Clone returns a value copy of the session suitable for handing out from
// the cache without letting a caller mutate the cached entry by reference
// (§5's "entries copied, not returned by reference" cache discipline).
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tickets := make([]Ticket, len(s.Tickets))
	for i, t := range s.Tickets {
		tickets[i] = Ticket{
			Label:        append([]byte(nil), t.Label...),
			Lifetime:     t.Lifetime,
			AgeAdd:       t.AgeAdd,
			IssuedAt:     t.IssuedAt,
			PSK:          append([]byte(nil), t.PSK...),
			MaxEarlyData: t.MaxEarlyData,
		}
	}
	clone := &Session{
		ID:             append([]byte(nil), s.ID...),
		Version:        s.Version,
		CipherSuite:    s.CipherSuite,
		NegotiatedALPN: s.NegotiatedALPN,
		ServerName:     s.ServerName,
		MasterSecret:   append([]byte(nil), s.MasterSecret...),
		Tickets:        tickets,
		CreatedAt:      s.CreatedAt,
		lastAccessed:   s.lastAccessed,
	}
	return clone
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
