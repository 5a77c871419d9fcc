// Package benchmark provides performance benchmarks for the gotls TLS
// engine.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./test/benchmark/
//
// For profiling:
//
//	go test -bench=. -cpuprofile=cpu.prof -memprofile=mem.prof ./test/benchmark/
package benchmark

import (
	"crypto/ed25519"
	"net"
	"sync"
	"testing"

	"github.com/pzverkov/gotls/internal/constants"
	"github.com/pzverkov/gotls/pkg/cipherstate"
	"github.com/pzverkov/gotls/pkg/conn"
	"github.com/pzverkov/gotls/pkg/crypto"
	"github.com/pzverkov/gotls/pkg/handshake"
	"github.com/pzverkov/gotls/pkg/kex"
)

// --- Cryptographic Primitive Benchmarks ---

func BenchmarkSecureRandom32(b *testing.B) {
	buf := make([]byte, 32)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = crypto.SecureRandom(buf)
	}
}

func BenchmarkSecureRandom64(b *testing.B) {
	buf := make([]byte, 64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = crypto.SecureRandom(buf)
	}
}

// --- X25519 Benchmarks ---

func BenchmarkX25519KeyGeneration(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := crypto.GenerateX25519KeyPair()
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkX25519SharedSecret(b *testing.B) {
	alice, _ := crypto.GenerateX25519KeyPair()
	bob, _ := crypto.GenerateX25519KeyPair()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := crypto.X25519(alice.PrivateKey, bob.PublicKey)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// --- ML-KEM-1024 Benchmarks ---

func BenchmarkMLKEMKeyGeneration(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := crypto.GenerateMLKEMKeyPair()
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMLKEMEncapsulation(b *testing.B) {
	kp, _ := crypto.GenerateMLKEMKeyPair()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, err := crypto.MLKEMEncapsulate(kp.EncapsulationKey)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMLKEMDecapsulation(b *testing.B) {
	kp, _ := crypto.GenerateMLKEMKeyPair()
	ciphertext, _, _ := crypto.MLKEMEncapsulate(kp.EncapsulationKey)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := crypto.MLKEMDecapsulate(kp.DecapsulationKey, ciphertext)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// --- Hybrid X25519+ML-KEM-1024 Benchmarks (pkg/kex) ---

func BenchmarkHybridKeyGeneration(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := kex.New(constants.GroupX25519MLKEM1024)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHybridEncapsulate(b *testing.B) {
	ke, _ := kex.New(constants.GroupX25519MLKEM1024)
	share := ke.PublicShare()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, err := kex.Encapsulate(share)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHybridFullExchange(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ke, _ := kex.New(constants.GroupX25519MLKEM1024)
		responderShare, _, _ := kex.Encapsulate(ke.PublicShare())
		_, _ = ke.SharedSecret(responderShare)
	}
}

// --- Key Schedule Benchmarks ---

func BenchmarkExpandLabel(b *testing.B) {
	ks := kex.NewKeySchedule(constants.TLS13, constants.HashSHA384)
	secret := make([]byte, 48)
	_ = crypto.SecureRandom(secret)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ks.ExpandLabel(secret, "key", nil, 32)
	}
}

func BenchmarkDeriveSecret(b *testing.B) {
	ks := kex.NewKeySchedule(constants.TLS13, constants.HashSHA384)
	secret := make([]byte, 48)
	transcript := make([]byte, 48)
	_ = crypto.SecureRandom(secret)
	_ = crypto.SecureRandom(transcript)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ks.DeriveSecret(secret, "c hs traffic", transcript)
	}
}

// --- AEAD Benchmarks ---

func BenchmarkAES256GCMEncrypt(b *testing.B) {
	key := make([]byte, 32)
	_ = crypto.SecureRandom(key)
	aead, _ := crypto.NewAEAD(crypto.BulkCipherAES256GCM, key)
	plaintext := make([]byte, 1400) // Typical MTU payload

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))
	for i := 0; i < b.N; i++ {
		_, err := aead.Seal(plaintext, nil)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAES256GCMDecrypt(b *testing.B) {
	key := make([]byte, 32)
	_ = crypto.SecureRandom(key)
	aead, _ := crypto.NewAEAD(crypto.BulkCipherAES256GCM, key)
	plaintext := make([]byte, 1400)
	ciphertext, _ := aead.Seal(plaintext, nil)

	// Create new AEAD for decryption (reset counter)
	aead2, _ := crypto.NewAEAD(crypto.BulkCipherAES256GCM, key)

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))
	for i := 0; i < b.N; i++ {
		_, err := aead2.Open(ciphertext, nil)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkChaCha20Poly1305Encrypt(b *testing.B) {
	key := make([]byte, 32)
	_ = crypto.SecureRandom(key)
	aead, _ := crypto.NewAEAD(crypto.BulkCipherChaCha20Poly1305, key)
	plaintext := make([]byte, 1400)

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))
	for i := 0; i < b.N; i++ {
		_, err := aead.Seal(plaintext, nil)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkChaCha20Poly1305Decrypt(b *testing.B) {
	key := make([]byte, 32)
	_ = crypto.SecureRandom(key)
	aead, _ := crypto.NewAEAD(crypto.BulkCipherChaCha20Poly1305, key)
	plaintext := make([]byte, 1400)
	ciphertext, _ := aead.Seal(plaintext, nil)

	aead2, _ := crypto.NewAEAD(crypto.BulkCipherChaCha20Poly1305, key)

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))
	for i := 0; i < b.N; i++ {
		_, err := aead2.Open(ciphertext, nil)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// --- Payload Size Benchmarks ---

func BenchmarkAES256GCMEncrypt64B(b *testing.B) {
	benchmarkAEADEncrypt(b, crypto.BulkCipherAES256GCM, 64)
}

func BenchmarkAES256GCMEncrypt1KB(b *testing.B) {
	benchmarkAEADEncrypt(b, crypto.BulkCipherAES256GCM, 1024)
}

func BenchmarkAES256GCMEncrypt8KB(b *testing.B) {
	benchmarkAEADEncrypt(b, crypto.BulkCipherAES256GCM, 8192)
}

func BenchmarkAES256GCMEncrypt64KB(b *testing.B) {
	benchmarkAEADEncrypt(b, crypto.BulkCipherAES256GCM, 65536)
}

func benchmarkAEADEncrypt(b *testing.B, suite crypto.BulkCipher, size int) {
	key := make([]byte, 32)
	_ = crypto.SecureRandom(key)
	aead, _ := crypto.NewAEAD(suite, key)
	plaintext := make([]byte, size)

	b.ResetTimer()
	b.SetBytes(int64(size))
	for i := 0; i < b.N; i++ {
		_, err := aead.Seal(plaintext, nil)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// --- Record-Layer CipherState Benchmarks ---

func BenchmarkCipherStateEncrypt(b *testing.B) {
	key := make([]byte, 32)
	iv := make([]byte, 12)
	_ = crypto.SecureRandom(key)
	_ = crypto.SecureRandom(iv)
	cs, err := cipherstate.NewAEADCipherState(constants.CipherSuiteTLS13AES256GCMSHA384, key, iv)
	if err != nil {
		b.Fatal(err)
	}

	plaintext := make([]byte, 1400)

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))
	for i := 0; i < b.N; i++ {
		_, err := cs.Seal(uint64(i), nil, plaintext)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCipherStateDecrypt(b *testing.B) {
	key := make([]byte, 32)
	iv := make([]byte, 12)
	_ = crypto.SecureRandom(key)
	_ = crypto.SecureRandom(iv)

	sender, err := cipherstate.NewAEADCipherState(constants.CipherSuiteTLS13AES256GCMSHA384, key, iv)
	if err != nil {
		b.Fatal(err)
	}
	receiver, err := cipherstate.NewAEADCipherState(constants.CipherSuiteTLS13AES256GCMSHA384, key, iv)
	if err != nil {
		b.Fatal(err)
	}

	plaintext := make([]byte, 1400)
	ciphertexts := make([][]byte, 1000)
	for i := 0; i < 1000; i++ {
		ciphertexts[i], _ = sender.Seal(uint64(i), nil, plaintext)
	}

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))
	for i := 0; i < b.N; i++ {
		idx := i % 1000
		_, _ = receiver.Open(uint64(idx), nil, ciphertexts[idx])
	}
}

// --- Handshake Benchmarks ---

func benchServerHandshakeConfig() handshake.Config {
	pub, priv, _ := ed25519.GenerateKey(nil)
	return handshake.Config{
		MinVersion:       constants.TLS13,
		MaxVersion:       constants.TLS13,
		CipherSuites:     []constants.CipherSuite{constants.CipherSuiteTLS13AES256GCMSHA384},
		Groups:           []constants.NamedGroup{constants.GroupX25519MLKEM1024, constants.GroupX25519},
		SignatureSchemes: []handshake.SignatureScheme{handshake.SignatureSchemeEd25519},
		CertData:         []byte(pub),
		Signer:           handshake.NewEd25519Signer(priv),
	}
}

func benchClientHandshakeConfig() handshake.Config {
	return handshake.Config{
		MinVersion:       constants.TLS13,
		MaxVersion:       constants.TLS13,
		CipherSuites:     []constants.CipherSuite{constants.CipherSuiteTLS13AES256GCMSHA384},
		Groups:           []constants.NamedGroup{constants.GroupX25519MLKEM1024, constants.GroupX25519},
		SignatureSchemes: []handshake.SignatureScheme{handshake.SignatureSchemeEd25519},
	}
}

func BenchmarkHandshake(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		clientConn, serverConn := net.Pipe()

		client := conn.New(clientConn, conn.Config{})
		server := conn.New(serverConn, conn.Config{})

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			_ = client.HandshakeClient(benchClientHandshakeConfig())
		}()

		go func() {
			defer wg.Done()
			_ = server.HandshakeServer(benchServerHandshakeConfig())
		}()

		wg.Wait()
		_ = clientConn.Close()
		_ = serverConn.Close()
	}
}

// --- Parallel Benchmarks ---

func BenchmarkHybridEncapsulateParallel(b *testing.B) {
	ke, _ := kex.New(constants.GroupX25519MLKEM1024)
	share := ke.PublicShare()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = kex.Encapsulate(share)
		}
	})
}

func BenchmarkAES256GCMEncryptParallel(b *testing.B) {
	key := make([]byte, 32)
	_ = crypto.SecureRandom(key)
	plaintext := make([]byte, 1400)

	b.SetBytes(int64(len(plaintext)))
	b.RunParallel(func(pb *testing.PB) {
		aead, _ := crypto.NewAEAD(crypto.BulkCipherAES256GCM, key)
		for pb.Next() {
			_, _ = aead.Seal(plaintext, nil)
		}
	})
}

// --- Memory Allocation Benchmarks ---

func BenchmarkHybridKeyGenerationAllocs(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = kex.New(constants.GroupX25519MLKEM1024)
	}
}

func BenchmarkHybridEncapsulateAllocs(b *testing.B) {
	ke, _ := kex.New(constants.GroupX25519MLKEM1024)
	share := ke.PublicShare()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = kex.Encapsulate(share)
	}
}
