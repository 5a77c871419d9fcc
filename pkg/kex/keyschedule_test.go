package kex

import (
	"bytes"
	"testing"

	"github.com/pzverkov/gotls/internal/constants"
)

func TestKeyBlockPartitioningLength(t *testing.T) {
	// §8 scenario 4: ChaCha20-Poly1305 TLS 1.2 key block is 32+32+12+12=88 bytes.
	ks := NewKeySchedule(constants.TLS12, constants.HashSHA256)
	master := bytes.Repeat([]byte{0x01}, 48)
	serverRandom := bytes.Repeat([]byte{0x02}, 32)
	clientRandom := bytes.Repeat([]byte{0x03}, 32)

	block := ks.KeyBlock(master, serverRandom, clientRandom, 88)
	if len(block) != 88 {
		t.Fatalf("key block length = %d, want 88", len(block))
	}

	clientWriteKey := block[0:32]
	serverWriteKey := block[32:64]
	clientFixedIV := block[64:76]
	serverFixedIV := block[76:88]
	for _, part := range [][]byte{clientWriteKey, serverWriteKey, clientFixedIV, serverFixedIV} {
		if len(part) == 0 {
			t.Fatal("unexpected empty key block partition")
		}
	}
}

func TestPRFDeterministic(t *testing.T) {
	ks := NewKeySchedule(constants.TLS12, constants.HashSHA256)
	secret := []byte("test secret")
	seed := []byte("test seed")
	a := ks.PRF(secret, "test label", seed, 32)
	b := ks.PRF(secret, "test label", seed, 32)
	if !bytes.Equal(a, b) {
		t.Fatal("PRF is not deterministic for identical inputs")
	}
}

func TestLegacyPRFDiffersFromTLS12PRF(t *testing.T) {
	secret := []byte("test secret")
	seed := []byte("test seed")
	legacy := prfLegacy(secret, "test label", seed, 32)
	ks12 := NewKeySchedule(constants.TLS12, constants.HashSHA256)
	modern := ks12.prf12(secret, "test label", seed, 32)
	if bytes.Equal(legacy, modern) {
		t.Fatal("legacy dual MD5/SHA1 PRF should not match the TLS 1.2 single-hash PRF")
	}
}

func TestTLS13KeyScheduleTreeIsDeterministic(t *testing.T) {
	ks := NewKeySchedule(constants.TLS13, constants.HashSHA256)
	psk := make([]byte, ks.HashLen())
	sharedSecret := bytes.Repeat([]byte{0xAB}, 32)

	early := ks.EarlySecret(psk)
	hs := ks.HandshakeSecret(early, sharedSecret)
	master := ks.MasterSecretTLS13(hs)

	transcript := bytes.Repeat([]byte{0xCD}, ks.HashLen())
	chts := ks.ClientHandshakeTrafficSecret(hs, transcript)
	shts := ks.ServerHandshakeTrafficSecret(hs, transcript)
	if bytes.Equal(chts, shts) {
		t.Fatal("client and server handshake traffic secrets must differ")
	}

	capp := ks.ClientApplicationTrafficSecret(master, transcript)
	key, iv := ks.TrafficKeyIV(capp, 32, 12)
	if len(key) != 32 || len(iv) != 12 {
		t.Fatalf("TrafficKeyIV lengths = (%d, %d), want (32, 12)", len(key), len(iv))
	}

	updated := ks.NextTrafficSecret(capp)
	if bytes.Equal(updated, capp) {
		t.Fatal("NextTrafficSecret (key_update) must produce a new secret")
	}
}

func TestFinishedVerifyDataRoundTrip(t *testing.T) {
	ks := NewKeySchedule(constants.TLS13, constants.HashSHA256)
	baseSecret := bytes.Repeat([]byte{0x11}, 32)
	finishedKey := ks.FinishedKey(baseSecret)
	transcript := bytes.Repeat([]byte{0x22}, 32)

	vd1 := ks.VerifyData(finishedKey, transcript)
	vd2 := ks.VerifyData(finishedKey, transcript)
	if !bytes.Equal(vd1, vd2) {
		t.Fatal("VerifyData must be deterministic")
	}
	if !ConstantTimeEqual(vd1, vd2) {
		t.Fatal("ConstantTimeEqual should accept equal verify_data")
	}
}

func TestCalcKeyTLS13DispatchesToExpandLabel(t *testing.T) {
	secret := bytes.Repeat([]byte{0x33}, 32)
	transcript := bytes.Repeat([]byte{0x44}, 32)
	out, err := CalcKey(constants.TLS13, constants.CipherSuiteTLS13AES128GCMSHA256, secret, "c hs traffic", transcript, 32)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 32 {
		t.Fatalf("CalcKey output length = %d, want 32", len(out))
	}
}

func TestCalcKeyLegacyMasterSecret(t *testing.T) {
	preMaster := bytes.Repeat([]byte{0x55}, 48)
	randoms := append(bytes.Repeat([]byte{0x66}, 32), bytes.Repeat([]byte{0x77}, 32)...)
	out, err := CalcKey(constants.TLS12, constants.CipherSuiteECDHERSAAES128GCMSHA256, preMaster, "master_secret", randoms, 48)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 48 {
		t.Fatalf("master secret length = %d, want 48", len(out))
	}
}
