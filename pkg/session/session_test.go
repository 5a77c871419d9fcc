package session

import (
	"testing"
	"time"

	"github.com/pzverkov/gotls/internal/constants"
)

func TestSessionAddAndFindTicket(t *testing.T) {
	sess := New([]byte("id"), constants.ParseVersion(3, 4), constants.CipherSuiteTLS13AES128GCMSHA256, []byte("master"))

	sess.AddTicket(Ticket{
		Label:    []byte("ticket-a"),
		Lifetime: 7200,
		IssuedAt: time.Now(),
		PSK:      []byte("psk-a"),
	})
	sess.AddTicket(Ticket{
		Label:    []byte("ticket-b"),
		Lifetime: 7200,
		IssuedAt: time.Now(),
		PSK:      []byte("psk-b"),
	})

	got, ok := sess.TicketFor([]byte("ticket-b"))
	if !ok {
		t.Fatal("expected ticket-b to be found")
	}
	if string(got.PSK) != "psk-b" {
		t.Fatalf("got psk %q", got.PSK)
	}

	if _, ok := sess.TicketFor([]byte("no-such-ticket")); ok {
		t.Fatal("expected miss for unknown label")
	}
}

func TestSessionCloneIsIndependent(t *testing.T) {
	sess := New([]byte("id"), constants.ParseVersion(3, 4), constants.CipherSuiteTLS13AES128GCMSHA256, []byte("master"))
	sess.AddTicket(Ticket{Label: []byte("t"), PSK: []byte("p")})

	clone := sess.Clone()
	clone.MasterSecret[0] = 'Z'
	clone.Tickets[0].Label[0] = 'Z'

	if sess.MasterSecret[0] == 'Z' {
		t.Fatal("clone's MasterSecret mutation leaked into original")
	}
	if sess.Tickets[0].Label[0] == 'Z' {
		t.Fatal("clone's Ticket slice shares backing array with original")
	}
}
