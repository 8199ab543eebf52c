package keychain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"filippo.io/edwards25519"
)

// ed25519Order is the prime order L of the Ed25519 base point group.
var ed25519Order = func() *big.Int {
	l, _ := new(big.Int).SetString("1000000000000000000000000000000014def9dea2f79cd65812631a5cf5d3ed", 16)
	return l
}()

// maxU256 masks the 256-bit modular additions of the HD-Edwards tree.
var maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// hdEd25519 walks the HD-Edwards tree: 64-byte extended secrets
// (kL, kR) with additive children and little-endian indices. The
// returned kL is consumed as an RFC 8032 seed, which is how the
// hardware's keypair generation treats the derived node.
func hdEd25519(seed []byte, path Path) ([]byte, error) {
	key := []byte("ed25519 seed")
	I := hmacSHA512(key, seed)
	for I[31]&0x20 != 0 {
		I = hmacSHA512(key, I)
	}
	kL, kR := I[:32], I[32:]
	kL[0] &= 0xf8
	kL[31] = kL[31]&0x7f | 0x40

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte{1})
	mac.Write(seed)
	chain := mac.Sum(nil)

	for _, idx := range path {
		var zTag, cTag byte = 0x00, 0x01
		var body []byte
		if idx&hardened != 0 {
			body = make([]byte, 0, 64)
			body = append(body, kL...)
			body = append(body, kR...)
		} else {
			zTag, cTag = 0x02, 0x03
			body = scalarBasePoint(kL)
		}

		z := hmacSHA512(chain, hdData(zTag, body, idx))
		chain = hmacSHA512(chain, hdData(cTag, body, idx))[32:]

		kL = leAddMul(kL, z[:28], 8)
		kR = leAddMul(kR, z[32:], 1)
		if new(big.Int).Mod(leInt(kL), ed25519Order).Sign() == 0 {
			return nil, ErrUnusableKey
		}
	}
	return kL, nil
}

// hdData assembles tag || body || ser32LE(index).
func hdData(tag byte, body []byte, idx uint32) []byte {
	data := make([]byte, 0, 1+len(body)+4)
	data = append(data, tag)
	data = append(data, body...)
	return binary.LittleEndian.AppendUint32(data, idx)
}

// scalarBasePoint compresses kL·B, reducing the little-endian scalar
// mod the group order first.
func scalarBasePoint(kL []byte) []byte {
	var wide [64]byte
	copy(wide[:], kL)
	s, _ := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	return new(edwards25519.Point).ScalarBaseMult(s).Bytes()
}

// leAddMul returns (a + mul·b) mod 2^256 over little-endian operands.
func leAddMul(a, b []byte, mul int64) []byte {
	sum := new(big.Int).Mul(leInt(b), big.NewInt(mul))
	sum.Add(sum, leInt(a))
	sum.And(sum, maxU256)
	var be [32]byte
	sum.FillBytes(be[:])
	return beToLE32(be[:])
}

// leInt reads little-endian bytes as an unsigned integer.
func leInt(le []byte) *big.Int {
	be := make([]byte, len(le))
	for i, x := range le {
		be[len(le)-1-i] = x
	}
	return new(big.Int).SetBytes(be)
}
