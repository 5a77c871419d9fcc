//go:build fips
// +build fips

// This file is compiled when the "fips" build tag is specified: only
// FIPS 140-3 approved cipher suites are offered or accepted, and the
// hybrid post-quantum suite (whose ML-KEM component has no FIPS 203
// validated module in this build) is excluded.
package protocol

import "github.com/pzverkov/gotls/internal/constants"

// SupportedCipherSuites returns the cipher suites offered/accepted in FIPS
// mode, in preference order.
func SupportedCipherSuites() []constants.CipherSuite {
	return []constants.CipherSuite{
		constants.CipherSuiteTLS13AES256GCMSHA384,
		constants.CipherSuiteTLS13AES128GCMSHA256,
		constants.CipherSuiteECDHEECDSAAES256GCMSHA384,
		constants.CipherSuiteECDHERSAAES256GCMSHA384,
		constants.CipherSuiteECDHEECDSAAES128GCMSHA256,
		constants.CipherSuiteECDHERSAAES128GCMSHA256,
		constants.CipherSuiteRSAAES256CBCSHA,
		constants.CipherSuiteRSAAES128CBCSHA256,
		constants.CipherSuiteRSAAES128CBCSHA,
	}
}

// PreferredCipherSuite returns the most preferred FIPS-mode suite.
func PreferredCipherSuite() constants.CipherSuite {
	return constants.CipherSuiteTLS13AES256GCMSHA384
}
