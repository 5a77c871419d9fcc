package main

import (
	"crypto/ed25519"
	"time"

	"github.com/pzverkov/gotls/internal/constants"
	"github.com/pzverkov/gotls/pkg/conn"
	"github.com/pzverkov/gotls/pkg/handshake"
)

// hybridCipherSuites is the handshake's suite preference list: the hybrid
// post-quantum group first, then the plain TLS 1.3 AEAD suites as fallback
// for a peer that doesn't offer GroupX25519MLKEM1024.
var hybridCipherSuites = []constants.CipherSuite{
	constants.CipherSuiteTLS13X25519MLKEM1024AES256GCMSHA384,
	constants.CipherSuiteTLS13AES256GCMSHA384,
	constants.CipherSuiteTLS13AES128GCMSHA256,
}

var hybridGroups = []constants.NamedGroup{
	constants.GroupX25519MLKEM1024,
	constants.GroupX25519,
}

func defaultConnConfig() conn.Config {
	return conn.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// serverHandshakeConfig builds a fresh ephemeral Ed25519 identity for the
// server flight's Certificate/CertificateVerify (§6's Signer collaborator);
// a demo process has no persistent identity to load from disk.
func serverHandshakeConfig() (handshake.Config, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return handshake.Config{}, err
	}
	return handshake.Config{
		MinVersion:       constants.TLS13,
		MaxVersion:       constants.TLS13,
		CipherSuites:     hybridCipherSuites,
		Groups:           hybridGroups,
		SignatureSchemes: []handshake.SignatureScheme{handshake.SignatureSchemeEd25519},
		CertData:         []byte(pub),
		Signer:           handshake.NewEd25519Signer(priv),
	}, nil
}

// clientHandshakeConfig leaves CertData/Signer unset: this demo does not
// exercise client authentication, only the server's identity.
func clientHandshakeConfig(serverName string) handshake.Config {
	return handshake.Config{
		MinVersion:       constants.TLS13,
		MaxVersion:       constants.TLS13,
		CipherSuites:     hybridCipherSuites,
		Groups:           hybridGroups,
		SignatureSchemes: []handshake.SignatureScheme{handshake.SignatureSchemeEd25519},
		ServerName:       serverName,
	}
}
