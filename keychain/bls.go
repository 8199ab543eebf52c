package keychain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	blst "github.com/supranational/blst/bindings/go"
)

// bls12381R is the scalar field order r of BLS12-381 (Fr).
var bls12381R = func() *big.Int {
	r, _ := new(big.Int).SetString("73EDA753299D7D483339D80809A1D80553BDA402FFFE5BFEFFFFFFFF00000001", 16)
	return r
}()

// blsSalt seeds HKDF-Extract for the consensus key tree. The fixed
// label keeps it domain-separated from the signing trees that share
// the seed.
var blsSalt = func() []byte {
	h := sha256.Sum256([]byte("MVSIGN-BLS-V1|consensus-key"))
	return h[:]
}()

// hkdfExtract returns HKDF-Extract(salt, ikm) with SHA-256.
func hkdfExtract(salt, ikm []byte) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write(ikm)
	return mac.Sum(nil)
}

// hkdfExpand returns HKDF-Expand(prk, info, n) with SHA-256.
func hkdfExpand(prk, info []byte, n int) []byte {
	var t, out []byte
	for ctr := byte(1); len(out) < n; ctr++ {
		mac := hmac.New(sha256.New, prk)
		mac.Write(t)
		mac.Write(info)
		mac.Write([]byte{ctr})
		t = mac.Sum(nil)
		out = append(out, t...)
	}
	return out[:n]
}

// hkdfModR maps ikm onto a nonzero Fr scalar: HKDF to a 48-byte
// big-endian candidate reduced mod r, rehashing the salt and retrying
// while the result is zero.
func hkdfModR(ikm []byte) (*blst.SecretKey, error) {
	if len(ikm) < 32 {
		return nil, ErrBadSeed
	}
	salt := blsSalt
	for {
		prk := hkdfExtract(salt, ikm)
		okm := hkdfExpand(prk, nil, 48)
		k := new(big.Int).SetBytes(okm)
		k.Mod(k, bls12381R)
		if k.Sign() != 0 {
			var be [32]byte
			k.FillBytes(be[:])
			var sk blst.SecretKey
			if sk.FromLEndian(beToLE32(be[:])) == nil {
				return nil, ErrUnusableKey
			}
			return &sk, nil
		}
		next := sha256.Sum256(salt)
		salt = next[:]
	}
}

// blsChild derives the child scalar at index: ikm is the parent scalar
// in big-endian followed by the big-endian index.
func blsChild(parent *blst.SecretKey, index uint32) (*blst.SecretKey, error) {
	ikm := make([]byte, 0, 36)
	ikm = append(ikm, beToLE32(parent.ToLEndian())...)
	ikm = binary.BigEndian.AppendUint32(ikm, index)
	return hkdfModR(ikm)
}

// blsPath derives the consensus master scalar from the seed and walks
// it down path.
func blsPath(seed []byte, path Path) (*blst.SecretKey, error) {
	sk, err := hkdfModR(seed)
	if err != nil {
		return nil, err
	}
	for _, idx := range path {
		sk, err = blsChild(sk, idx)
		if err != nil {
			return nil, err
		}
	}
	return sk, nil
}

// beToLE32 reverses a 32-byte string between endiannesses.
func beToLE32(be []byte) []byte {
	le := make([]byte, 32)
	for i := 0; i < 32; i++ {
		le[i] = be[31-i]
	}
	return le
}
