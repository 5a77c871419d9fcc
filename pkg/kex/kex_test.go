package kex

import (
	"bytes"
	"testing"

	"github.com/pzverkov/gotls/internal/constants"
)

func TestECDHERoundTrip(t *testing.T) {
	a, err := New(constants.GroupSecp256r1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(constants.GroupSecp256r1)
	if err != nil {
		t.Fatal(err)
	}
	secretA, err := a.SharedSecret(b.PublicShare())
	if err != nil {
		t.Fatal(err)
	}
	secretB, err := b.SharedSecret(a.PublicShare())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(secretA, secretB) {
		t.Fatal("ECDHE shared secrets differ")
	}
}

func TestX25519RoundTrip(t *testing.T) {
	a, err := New(constants.GroupX25519)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(constants.GroupX25519)
	if err != nil {
		t.Fatal(err)
	}
	secretA, err := a.SharedSecret(b.PublicShare())
	if err != nil {
		t.Fatal(err)
	}
	secretB, err := b.SharedSecret(a.PublicShare())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(secretA, secretB) {
		t.Fatal("X25519 shared secrets differ")
	}
}

func TestFFDHERoundTrip(t *testing.T) {
	a, err := New(constants.GroupFFDHE2048)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(constants.GroupFFDHE2048)
	if err != nil {
		t.Fatal(err)
	}
	secretA, err := a.SharedSecret(b.PublicShare())
	if err != nil {
		t.Fatal(err)
	}
	secretB, err := b.SharedSecret(a.PublicShare())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(secretA, secretB) {
		t.Fatal("FFDHE shared secrets differ")
	}
}

func TestFFDHERejectsOutOfRangeY(t *testing.T) {
	a, err := New(constants.GroupFFDHE2048)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.SharedSecret([]byte{1}); err == nil {
		t.Fatal("expected SharedSecret to reject Y=1")
	}
}

func TestHybridX25519MLKEM1024RoundTrip(t *testing.T) {
	initiator, err := New(constants.GroupX25519MLKEM1024)
	if err != nil {
		t.Fatal(err)
	}
	responderShare, secretResponder, err := Encapsulate(initiator.PublicShare())
	if err != nil {
		t.Fatal(err)
	}
	secretInitiator, err := initiator.SharedSecret(responderShare)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(secretInitiator, secretResponder) {
		t.Fatal("hybrid shared secrets differ")
	}
	if len(secretInitiator) != constants.HybridSharedSecretSize {
		t.Fatalf("hybrid secret length = %d, want %d", len(secretInitiator), constants.HybridSharedSecretSize)
	}
}

func TestSelectGroupPrefersClientOrder(t *testing.T) {
	offered := []constants.NamedGroup{constants.GroupFFDHE4096, constants.GroupFFDHE3072}
	accepted := []constants.NamedGroup{constants.GroupFFDHE8192, constants.GroupFFDHE3072}
	got, ok := SelectGroup(offered, accepted)
	if !ok || got != constants.GroupFFDHE3072 {
		t.Fatalf("SelectGroup = (%v, %v), want (ffdhe3072, true)", got, ok)
	}
}

func TestSelectGroupUnregisteredNeverWins(t *testing.T) {
	offered := []constants.NamedGroup{constants.GroupX25519MLKEM768, constants.GroupX25519}
	accepted := []constants.NamedGroup{constants.GroupX25519MLKEM768, constants.GroupX25519}
	got, ok := SelectGroup(offered, accepted)
	if !ok || got != constants.GroupX25519 {
		t.Fatalf("SelectGroup = (%v, %v), want (x25519, true) since ML-KEM-768 has no registered strategy", got, ok)
	}
}

func TestCheckDHKeySize(t *testing.T) {
	if err := CheckDHKeySize(1024, 2048, 8192); err == nil {
		t.Fatal("expected 1024-bit modulus to fail minimum key size policy")
	}
	if err := CheckDHKeySize(3072, 2048, 8192); err != nil {
		t.Fatalf("unexpected error for in-range modulus: %v", err)
	}
}
