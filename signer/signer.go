// Package signer turns review-approved digests into wire-form
// signatures for whichever curve the session key lives on.
package signer

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	blst "github.com/supranational/blst/bindings/go"

	"github.com/mavryk-network/mvsign/b58"
	"github.com/mavryk-network/mvsign/keychain"
)

// MinPk aliases: public keys live in G1, signatures in G2.
type (
	PublicKey = blst.P1Affine
	Signature = blst.P2Affine
)

// dstAug is the CFRG MinPk ciphersuite with message augmentation: a
// consensus key signs its own compressed public key prepended to the
// message.
var dstAug = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_AUG_")

var (
	ErrUnsupportedCurve = errors.New("signer: unsupported curve")
	ErrBadKey           = errors.New("signer: bad key material")
	ErrBadSignature     = errors.New("signer: bad signature encoding")
)

// Sign produces the signature of digest in the form the wire replies
// with: 64 raw bytes for the Edwards curves, a parity-tagged DER
// sequence for the ECDSA curves, the 96-byte compressed G2 point for
// BLS. All schemes are deterministic.
func Sign(key *keychain.Key, digest []byte) ([]byte, error) {
	switch key.Curve() {
	case keychain.CurveEd25519, keychain.CurveBip32Ed25519:
		return ed25519.Sign(ed25519.NewKeyFromSeed(key.Secret()), digest), nil
	case keychain.CurveSecp256k1:
		return signSecp256k1(key.Secret(), digest), nil
	case keychain.CurveP256:
		return signP256(key.Secret(), digest), nil
	case keychain.CurveBLS12381:
		return signBLS(key, digest)
	}
	return nil, ErrUnsupportedCurve
}

// Verify reports whether sig is key's signature over digest, taking
// the same wire forms Sign emits.
func Verify(key *keychain.Key, digest, sig []byte) bool {
	switch key.Curve() {
	case keychain.CurveEd25519, keychain.CurveBip32Ed25519:
		return ed25519.Verify(ed25519.PublicKey(key.PublicBytes()[1:]), digest, sig)
	case keychain.CurveSecp256k1:
		return verifySecp256k1(key.PublicBytes(), digest, sig)
	case keychain.CurveP256:
		return verifyP256(key.PublicBytes(), digest, sig)
	case keychain.CurveBLS12381:
		pub := key.PublicBytes()
		var pk PublicKey
		if pk.Uncompress(pub) == nil {
			return false
		}
		var s Signature
		if s.Uncompress(sig) == nil {
			return false
		}
		return s.Verify(true, &pk, true, digest, dstAug, pub)
	}
	return false
}

// signSecp256k1 signs with decred's deterministic RFC 6979 nonce and
// folds the recovery parity into the DER tag.
func signSecp256k1(secret, digest []byte) []byte {
	priv := secp256k1.PrivKeyFromBytes(secret)
	compact := secpecdsa.SignCompact(priv, digest, true)
	odd := (compact[0]-27-4)&1 == 1
	return taggedDER(compact[1:33], compact[33:65], odd)
}

func verifySecp256k1(pub, digest, sig []byte) bool {
	der, err := untagged(sig)
	if err != nil {
		return false
	}
	parsed, err := secpecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}
	pk, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false
	}
	return parsed.Verify(digest, pk)
}

var (
	p256N     = elliptic.P256().Params().N
	p256HalfN = new(big.Int).Rsh(elliptic.P256().Params().N, 1)
)

// signP256 runs textbook ECDSA over the NIST curve with an RFC 6979
// nonce, low-s normalized, parity folded into the DER tag.
func signP256(secret, digest []byte) []byte {
	d := new(big.Int).SetBytes(secret)
	e := new(big.Int).SetBytes(digest)
	drbg := newNonceDRBG(secret, digest, p256N)
	for {
		k := drbg.next()
		var kb [32]byte
		k.FillBytes(kb[:])
		kp, err := ecdh.P256().NewPrivateKey(kb[:])
		if err != nil {
			continue
		}
		point := kp.PublicKey().Bytes()
		r := new(big.Int).SetBytes(point[1:33])
		r.Mod(r, p256N)
		if r.Sign() == 0 {
			continue
		}
		odd := point[64]&1 == 1

		s := new(big.Int).Mul(r, d)
		s.Add(s, e)
		s.Mul(s, new(big.Int).ModInverse(k, p256N))
		s.Mod(s, p256N)
		if s.Sign() == 0 {
			continue
		}
		if s.Cmp(p256HalfN) > 0 {
			s.Sub(p256N, s)
			odd = !odd
		}

		var rb, sb [32]byte
		r.FillBytes(rb[:])
		s.FillBytes(sb[:])
		return taggedDER(rb[:], sb[:], odd)
	}
}

func verifyP256(pub, digest, sig []byte) bool {
	r, s, err := parseTagged(sig)
	if err != nil {
		return false
	}
	key := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(pub[1:33]),
		Y:     new(big.Int).SetBytes(pub[33:]),
	}
	return ecdsa.Verify(key, digest, r, s)
}

// signBLS signs digest augmented with the compressed public key.
func signBLS(key *keychain.Key, digest []byte) ([]byte, error) {
	var sk blst.SecretKey
	if sk.FromLEndian(key.Secret()) == nil {
		return nil, ErrBadKey
	}
	sig := new(Signature).Sign(&sk, digest, dstAug, key.PublicBytes())
	if sig == nil {
		return nil, ErrBadKey
	}
	return sig.Compress(), nil
}

// taggedDER renders r||s as the DER sequence the hardware emits, the
// recovery parity OR-ed into the tag byte.
func taggedDER(r, s []byte, odd bool) []byte {
	rb, sb := derInt(r), derInt(s)
	tag := byte(0x30)
	if odd {
		tag |= 0x01
	}
	sig := make([]byte, 0, 6+len(rb)+len(sb))
	sig = append(sig, tag, byte(4+len(rb)+len(sb)))
	sig = append(sig, 0x02, byte(len(rb)))
	sig = append(sig, rb...)
	sig = append(sig, 0x02, byte(len(sb)))
	sig = append(sig, sb...)
	return sig
}

// derInt trims leading zeros, keeping one when the top bit would read
// as a sign.
func derInt(v []byte) []byte {
	i := 0
	for i < len(v)-1 && v[i] == 0 {
		i++
	}
	v = v[i:]
	if v[0]&0x80 != 0 {
		padded := make([]byte, 0, len(v)+1)
		padded = append(padded, 0)
		return append(padded, v...)
	}
	return v
}

// untagged strips the recovery parity bit back off the DER tag.
func untagged(sig []byte) ([]byte, error) {
	if len(sig) == 0 || sig[0]&0xfe != 0x30 {
		return nil, ErrBadSignature
	}
	der := bytes.Clone(sig)
	der[0] = 0x30
	return der, nil
}

// parseTagged pulls r and s back out of a parity-tagged DER sequence.
func parseTagged(sig []byte) (r, s *big.Int, err error) {
	if len(sig) < 8 || sig[0]&0xfe != 0x30 || int(sig[1]) != len(sig)-2 {
		return nil, nil, ErrBadSignature
	}
	rb, rest, err := derElement(sig[2:])
	if err != nil {
		return nil, nil, err
	}
	sb, rest, err := derElement(rest)
	if err != nil || len(rest) != 0 {
		return nil, nil, ErrBadSignature
	}
	return new(big.Int).SetBytes(rb), new(big.Int).SetBytes(sb), nil
}

func derElement(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 2 || buf[0] != 0x02 {
		return nil, nil, ErrBadSignature
	}
	n := int(buf[1])
	if n == 0 || len(buf) < 2+n {
		return nil, nil, ErrBadSignature
	}
	return buf[2 : 2+n], buf[2+n:], nil
}

// Compact re-encodes a parity-tagged ECDSA signature into the fixed
// 64-byte r||s form the base58 signature prefixes carry.
func Compact(sig []byte) ([]byte, error) {
	r, s, err := parseTagged(sig)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}

// SignatureB58 renders a wire-form signature under the curve's base58
// prefix.
func SignatureB58(curve keychain.Curve, sig []byte) (string, error) {
	switch curve {
	case keychain.CurveEd25519, keychain.CurveBip32Ed25519:
		if len(sig) != 64 {
			return "", ErrBadSignature
		}
		return b58.CheckEncode(b58.SigEd25519, sig), nil
	case keychain.CurveSecp256k1, keychain.CurveP256:
		compact, err := Compact(sig)
		if err != nil {
			return "", err
		}
		prefix := b58.SigSecp256k1
		if curve == keychain.CurveP256 {
			prefix = b58.SigP256
		}
		return b58.CheckEncode(prefix, compact), nil
	case keychain.CurveBLS12381:
		if len(sig) != 96 {
			return "", ErrBadSignature
		}
		return b58.CheckEncode(b58.SigBLS, sig), nil
	}
	return "", ErrUnsupportedCurve
}
