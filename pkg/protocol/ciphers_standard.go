//go:build !fips
// +build !fips

// This file is compiled when the "fips" build tag is NOT specified: the
// full suite list is offered, including ChaCha20-Poly1305 and the hybrid
// post-quantum ML-KEM suite.
package protocol

import "github.com/pzverkov/gotls/internal/constants"

// SupportedCipherSuites returns the cipher suites offered/accepted in
// standard mode, in preference order.
func SupportedCipherSuites() []constants.CipherSuite {
	return []constants.CipherSuite{
		constants.CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384,
		constants.CipherSuiteTLS13AES256GCMSHA384,
		constants.CipherSuiteTLS13ChaCha20Poly1305SHA256,
		constants.CipherSuiteTLS13AES128GCMSHA256,
		constants.CipherSuiteECDHEECDSAAES256GCMSHA384,
		constants.CipherSuiteECDHERSAAES256GCMSHA384,
		constants.CipherSuiteECDHERSAChaCha20Poly1305SHA256,
		constants.CipherSuiteECDHEECDSAAES128GCMSHA256,
		constants.CipherSuiteECDHERSAAES128GCMSHA256,
		constants.CipherSuiteRSAAES256CBCSHA,
		constants.CipherSuiteRSAAES128CBCSHA256,
		constants.CipherSuiteRSAAES128CBCSHA,
		constants.CipherSuiteECDHERSAAES256CBCSHA,
		constants.CipherSuiteECDHERSAAES128CBCSHA,
	}
}

// PreferredCipherSuite returns the most preferred standard-mode suite: the
// hybrid post-quantum construction when available.
func PreferredCipherSuite() constants.CipherSuite {
	return constants.CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384
}
