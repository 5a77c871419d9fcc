package handshake

import (
	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/protocol"
)

// KeyShareEntry is one (group, key_exchange) pair of a key_share extension
// (RFC 8446 §4.2.8), used in both directions: a ClientHello carries a list,
// a ServerHello/HelloRetryRequest carries exactly one.
type KeyShareEntry struct {
	Group constants.NamedGroup
	Data  []byte
}

func buildKeyShareList(entries []KeyShareEntry) (protocol.Extension, error) {
	w := protocol.NewWriter()
	err := w.WithLengthPrefix(2, func(body *protocol.Writer) error {
		for _, e := range entries {
			body.WriteUint16(uint16(e.Group))
			if err := body.WriteVector(2, e.Data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return protocol.Extension{}, err
	}
	return protocol.Extension{Type: constants.ExtensionKeyShare, Data: w.Bytes()}, nil
}

func parseKeyShareList(data []byte) ([]KeyShareEntry, error) {
	r := protocol.NewReader(data)
	body, err := r.ReadVector(2)
	if err != nil {
		return nil, err
	}
	inner := protocol.NewReader(body)
	var out []KeyShareEntry
	for inner.Len() > 0 {
		g, err := inner.ReadUint16()
		if err != nil {
			return nil, err
		}
		share, err := inner.ReadVector(2)
		if err != nil {
			return nil, err
		}
		out = append(out, KeyShareEntry{Group: constants.NamedGroup(g), Data: share})
	}
	return out, nil
}

func buildKeyShareOne(entry KeyShareEntry) protocol.Extension {
	w := protocol.NewWriter()
	w.WriteUint16(uint16(entry.Group))
	_ = w.WriteVector(2, entry.Data)
	return protocol.Extension{Type: constants.ExtensionKeyShare, Data: w.Bytes()}
}

func parseKeyShareOne(data []byte) (KeyShareEntry, error) {
	r := protocol.NewReader(data)
	g, err := r.ReadUint16()
	if err != nil {
		return KeyShareEntry{}, err
	}
	share, err := r.ReadVector(2)
	if err != nil {
		return KeyShareEntry{}, err
	}
	return KeyShareEntry{Group: constants.NamedGroup(g), Data: share}, nil
}

func buildSupportedVersionsClient(versions []constants.ProtocolVersion) protocol.Extension {
	w := protocol.NewWriter()
	_ = w.WithLengthPrefix(1, func(body *protocol.Writer) error {
		for _, v := range versions {
			body.WriteUint16(v.Uint16())
		}
		return nil
	})
	return protocol.Extension{Type: constants.ExtensionSupportedVersions, Data: w.Bytes()}
}

func parseSupportedVersionsClient(data []byte) ([]constants.ProtocolVersion, error) {
	r := protocol.NewReader(data)
	body, err := r.ReadVector(1)
	if err != nil {
		return nil, err
	}
	inner := protocol.NewReader(body)
	var out []constants.ProtocolVersion
	for inner.Len() > 0 {
		v, err := inner.ReadUint16()
		if err != nil {
			return nil, err
		}
		out = append(out, constants.ParseVersion(byte(v>>8), byte(v)))
	}
	return out, nil
}

func buildSupportedVersionsServer(v constants.ProtocolVersion) protocol.Extension {
	w := protocol.NewWriter()
	w.WriteUint16(v.Uint16())
	return protocol.Extension{Type: constants.ExtensionSupportedVersions, Data: w.Bytes()}
}

func parseSupportedVersionsServer(data []byte) (constants.ProtocolVersion, error) {
	r := protocol.NewReader(data)
	v, err := r.ReadUint16()
	if err != nil {
		return constants.ProtocolVersion{}, err
	}
	return constants.ParseVersion(byte(v>>8), byte(v)), nil
}

func buildSupportedGroups(groups []constants.NamedGroup) protocol.Extension {
	w := protocol.NewWriter()
	_ = w.WithLengthPrefix(2, func(body *protocol.Writer) error {
		for _, g := range groups {
			body.WriteUint16(uint16(g))
		}
		return nil
	})
	return protocol.Extension{Type: constants.ExtensionSupportedGroups, Data: w.Bytes()}
}

func parseSupportedGroups(data []byte) ([]constants.NamedGroup, error) {
	r := protocol.NewReader(data)
	body, err := r.ReadVector(2)
	if err != nil {
		return nil, err
	}
	inner := protocol.NewReader(body)
	var out []constants.NamedGroup
	for inner.Len() > 0 {
		g, err := inner.ReadUint16()
		if err != nil {
			return nil, err
		}
		out = append(out, constants.NamedGroup(g))
	}
	return out, nil
}

func buildSignatureAlgorithms(schemes []uint16) protocol.Extension {
	w := protocol.NewWriter()
	_ = w.WithLengthPrefix(2, func(body *protocol.Writer) error {
		for _, s := range schemes {
			body.WriteUint16(s)
		}
		return nil
	})
	return protocol.Extension{Type: constants.ExtensionSignatureAlgorithms, Data: w.Bytes()}
}

func parseSignatureAlgorithms(data []byte) ([]uint16, error) {
	r := protocol.NewReader(data)
	body, err := r.ReadVector(2)
	if err != nil {
		return nil, err
	}
	inner := protocol.NewReader(body)
	var out []uint16
	for inner.Len() > 0 {
		s, err := inner.ReadUint16()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func buildServerName(name string) protocol.Extension {
	w := protocol.NewWriter()
	_ = w.WithLengthPrefix(2, func(body *protocol.Writer) error {
		body.WriteUint8(0) // host_name
		return body.WriteVector(2, []byte(name))
	})
	return protocol.Extension{Type: constants.ExtensionServerName, Data: w.Bytes()}
}

func parseServerName(data []byte) (string, error) {
	r := protocol.NewReader(data)
	body, err := r.ReadVector(2)
	if err != nil {
		return "", err
	}
	inner := protocol.NewReader(body)
	if inner.Len() == 0 {
		return "", qerrors.ErrDecodeError
	}
	nameType, err := inner.ReadUint8()
	if err != nil || nameType != 0 {
		return "", qerrors.ErrDecodeError
	}
	host, err := inner.ReadVector(2)
	if err != nil {
		return "", err
	}
	return string(host), nil
}

func buildALPNOffer(protocols []string) protocol.Extension {
	w := protocol.NewWriter()
	_ = w.WithLengthPrefix(2, func(body *protocol.Writer) error {
		for _, p := range protocols {
			if err := body.WriteVector(1, []byte(p)); err != nil {
				return err
			}
		}
		return nil
	})
	return protocol.Extension{Type: constants.ExtensionALPN, Data: w.Bytes()}
}

func parseALPNList(data []byte) ([]string, error) {
	r := protocol.NewReader(data)
	body, err := r.ReadVector(2)
	if err != nil {
		return nil, err
	}
	inner := protocol.NewReader(body)
	var out []string
	for inner.Len() > 0 {
		p, err := inner.ReadVector(1)
		if err != nil {
			return nil, err
		}
		out = append(out, string(p))
	}
	return out, nil
}

func buildALPNSelected(protocol_ string) protocol.Extension {
	return buildALPNOffer([]string{protocol_})
}

// emptyExtension builds a zero-length-body marker extension, used for
// extended_master_secret and encrypt_then_mac whose presence alone is the
// signal (RFC 7627, RFC 7366).
func emptyExtension(t constants.ExtensionType) protocol.Extension {
	return protocol.Extension{Type: t, Data: nil}
}

// selectMutualALPN picks the first server-preference protocol the client
// also offered; TLS's rule is server preference order wins, unlike
// supported_groups' client-preference rule (§4.9).
func selectMutualALPN(clientOffered, serverPreferred []string) (string, bool) {
	offered := make(map[string]bool, len(clientOffered))
	for _, p := range clientOffered {
		offered[p] = true
	}
	for _, p := range serverPreferred {
		if offered[p] {
			return p, true
		}
	}
	return "", false
}
