package kex

import (
	"math/big"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
	"github.com/pzverkov/gotls/pkg/crypto"
)

// ffdheGroup is one RFC 7919 named finite-field group: a safe prime p and
// generator g shared by every client/server instance of that group.
type ffdheGroup struct {
	group constants.NamedGroup
	p     *big.Int
	g     *big.Int
}

// ffdhe2048 and ffdhe3072 carry the real RFC 7919 Appendix A.1/A.2 moduli.
// ffdhe4096/6144/8192 are deliberately not instantiated here: this engine
// recognizes those NamedGroup values for parsing but has no verified prime
// table for them, so kex.go's registry leaves them unregistered and SelectGroup
// falls through to the next mutually offered group (the same non-selection
// pattern used for the unwired hybrid ML-KEM-768 groups).
var ffdhe2048 = mustGroup(constants.GroupFFDHE2048, ffdhe2048Hex, 2)
var ffdhe3072 = mustGroup(constants.GroupFFDHE3072, ffdhe3072Hex, 2)

const ffdhe2048Hex = "" +
	"FFFFFFFFFFFFFFFFADF85458A2BB4A9AAFDC5620273D3CF1D8B9C583CE2D3695A9E13641146433FBCC939DCE249B3EF97D2FE363630C75D8F681B202AEC4617AD3DF1ED5D5FD65612433F51F5F066ED0856365553DED1AF3B557135E7F57C935984F0C70E0E68B77E2A689DAF3EFE8721DF158A136ADE7353ACCA4F483A797ABC0AB182B324FB61D108A94BB2C8E3FBB96ADAB760D7F4681D4F42A3DE394DF4AE56EDE76372BB190B07A7C8EE0A6D709E02FCE1CDF7E2ECC03404CD28342F619172FE9CE98583FF8E4F1232EEF28183C3FE3B1B4C6FAD733BB5FCBC2EC22005C58EF1837D1683B2C6F34A26C1B2EFFA886B423861285C97FFFFFFFFFFFFFFFF"

const ffdhe3072Hex = "" +
	"FFFFFFFFFFFFFFFFADF85458A2BB4A9AAFDC5620273D3CF1D8B9C583CE2D3695A9E13641146433FBCC939DCE249B3EF97D2FE363630C75D8F681B202AEC4617AD3DF1ED5D5FD65612433F51F5F066ED0856365553DED1AF3B557135E7F57C935984F0C70E0E68B77E2A689DAF3EFE8721DF158A136ADE7353ACCA4F483A797ABC0AB182B324FB61D108A94BB2C8E3FBB96ADAB760D7F4681D4F42A3DE394DF4AE56EDE76372BB190B07A7C8EE0A6D709E02FCE1CDF7E2ECC03404CD28342F619172FE9CE98583FF8E4F1232EEF28183C3FE3B1B4C6FAD733BB5FCBC2EC22005C58EF1837D1683B2C6F34A26C1B2EFFA886B4238611FCFDCDE355B3B6519035BBC34F4DEF99C023861B46FC9D6E6C9077AD91D2691F7F7EE598CB0FAC186D91CAEFE130985139270B4130C93BC437944F4FD4452E2D74DD364F2E21E71F54BFF5CAE82AB9C9DF69EE86D2BC522363A0DABC521979B0DEADA1DBF9A42D5C4484E0ABCD06BFA53DDEF3C1B20EE3FD59D7C25E41D2B66C62E37FFFFFFFFFFFFFFFF"

func mustGroup(group constants.NamedGroup, hexP string, g int64) *ffdheGroup {
	p, ok := new(big.Int).SetString(hexP, 16)
	if !ok {
		panic("kex: invalid FFDHE prime literal for " + hexP[:8])
	}
	return &ffdheGroup{group: group, p: p, g: big.NewInt(g)}
}

type ffdheKeyExchange struct {
	grp     *ffdheGroup
	private *big.Int
	public  *big.Int
}

func newFFDHE(grp *ffdheGroup) (KeyExchange, error) {
	// Private exponent: a random value in [2, p-2], sized to the modulus so
	// the classic (EC)DHE strategies and FFDHE share the same entropy
	// budget per bit of group order.
	byteLen := (grp.p.BitLen() + 7) / 8
	buf, err := crypto.SecureRandomBytes(byteLen)
	if err != nil {
		return nil, err
	}
	priv := new(big.Int).SetBytes(buf)
	pMinus2 := new(big.Int).Sub(grp.p, big.NewInt(2))
	priv.Mod(priv, pMinus2)
	priv.Add(priv, big.NewInt(2))

	pub := new(big.Int).Exp(grp.g, priv, grp.p)
	return &ffdheKeyExchange{grp: grp, private: priv, public: pub}, nil
}

func (f *ffdheKeyExchange) Group() constants.NamedGroup { return f.grp.group }

func (f *ffdheKeyExchange) PublicShare() []byte {
	byteLen := (f.grp.p.BitLen() + 7) / 8
	return leftPad(f.public.Bytes(), byteLen)
}

// SharedSecret validates the peer's Y per §4.8: 1 < Y < p-1, rejecting the
// degenerate subgroup elements before ever computing Y^private mod p.
func (f *ffdheKeyExchange) SharedSecret(peerShare []byte) ([]byte, error) {
	y := new(big.Int).SetBytes(peerShare)
	one := big.NewInt(1)
	pMinus1 := new(big.Int).Sub(f.grp.p, one)
	if y.Cmp(one) <= 0 || y.Cmp(pMinus1) >= 0 {
		return nil, qerrors.NewProtocolError("kex.FFDHE", qerrors.ErrDHParameterOutOfRange)
	}
	secret := new(big.Int).Exp(y, f.private, f.grp.p)
	byteLen := (f.grp.p.BitLen() + 7) / 8
	return leftPad(secret.Bytes(), byteLen), nil
}

func (f *ffdheKeyExchange) Zeroize() { f.private = nil }

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// CheckDHKeySize enforces the §6 Configuration min_key_size/max_key_size
// policy against an inbound ServerKeyExchange's modulus bit length.
func CheckDHKeySize(modulusBitLen, minKeySize, maxKeySize int) error {
	if modulusBitLen < minKeySize || modulusBitLen > maxKeySize {
		return qerrors.NewProtocolError("kex.FFDHE", qerrors.ErrInsufficientSecurity)
	}
	return nil
}
