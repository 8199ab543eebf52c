// Package keychain derives the signing keys the device holds from its
// BIP39 seed. Each curve code selects the derivation tree the hardware
// uses for it: SLIP-10 for Ed25519 and the two ECDSA curves, the
// HD-Edwards scheme for BIP32-Ed25519 and a hardened HKDF tree for BLS
// consensus keys. Addresses and key strings follow the b58 prefix
// table.
package keychain

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/sha512"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	blst "github.com/supranational/blst/bindings/go"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/pbkdf2"

	"github.com/mavryk-network/mvsign/b58"
)

// Curve selects a derivation tree and signature algorithm. The values
// are the curve codes of the wire protocol.
type Curve uint8

const (
	CurveEd25519 Curve = iota
	CurveSecp256k1
	CurveP256
	CurveBip32Ed25519
	CurveBLS12381
)

// CurveFromCode maps a wire curve code onto a Curve.
func CurveFromCode(code byte) (Curve, error) {
	if code > byte(CurveBLS12381) {
		return 0, ErrUnknownCurve
	}
	return Curve(code), nil
}

func (c Curve) String() string {
	switch c {
	case CurveEd25519:
		return "ed25519"
	case CurveSecp256k1:
		return "secp256k1"
	case CurveP256:
		return "secp256r1"
	case CurveBip32Ed25519:
		return "bip32-ed25519"
	case CurveBLS12381:
		return "bls12-381"
	}
	return "unknown"
}

// Keychain holds the master seed every derivation starts from. Keys
// are rederived on each request; nothing below the seed is retained.
type Keychain struct {
	seed []byte
}

// New builds a keychain from a BIP39 mnemonic sentence and passphrase:
// PBKDF2-HMAC-SHA512 over the sentence, 2048 rounds, 64-byte seed.
func New(mnemonic, passphrase string) *Keychain {
	seed := pbkdf2.Key([]byte(mnemonic), []byte("mnemonic"+passphrase), 2048, 64, sha512.New)
	return &Keychain{seed: seed}
}

// FromSeed builds a keychain from a raw master seed of 16..64 bytes.
func FromSeed(seed []byte) (*Keychain, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, ErrBadSeed
	}
	return &Keychain{seed: bytes.Clone(seed)}, nil
}

// Key is one derived signing key. The secret layout depends on the
// curve: an RFC 8032 seed for the Edwards curves, a big-endian scalar
// for the ECDSA curves, a little-endian scalar for BLS.
type Key struct {
	curve  Curve
	secret []byte
	point  []byte
}

// Derive walks the curve's tree down path and returns the key at the
// leaf.
func (kc *Keychain) Derive(curve Curve, path Path) (*Key, error) {
	switch curve {
	case CurveEd25519:
		sk, err := slip10Ed25519(kc.seed, path)
		if err != nil {
			return nil, err
		}
		return edwardsKey(curve, sk), nil

	case CurveBip32Ed25519:
		sk, err := hdEd25519(kc.seed, path)
		if err != nil {
			return nil, err
		}
		return edwardsKey(curve, sk), nil

	case CurveSecp256k1:
		d, err := slip10ECDSA(secpTree, kc.seed, path)
		if err != nil {
			return nil, err
		}
		pub := secp256k1.PrivKeyFromBytes(d).PubKey()
		return &Key{curve: curve, secret: d, point: pub.SerializeUncompressed()}, nil

	case CurveP256:
		d, err := slip10ECDSA(p256Tree, kc.seed, path)
		if err != nil {
			return nil, err
		}
		priv, err := ecdh.P256().NewPrivateKey(d)
		if err != nil {
			return nil, ErrUnusableKey
		}
		return &Key{curve: curve, secret: d, point: priv.PublicKey().Bytes()}, nil

	case CurveBLS12381:
		sk, err := blsPath(kc.seed, path)
		if err != nil {
			return nil, err
		}
		point := new(blst.P1Affine).From(sk).Compress()
		return &Key{curve: curve, secret: sk.ToLEndian(), point: point}, nil
	}
	return nil, ErrUnknownCurve
}

// edwardsKey expands a derived 32-byte seed into its RFC 8032 keypair.
// Both Edwards trees hand their leaf to the signature scheme this way.
func edwardsKey(curve Curve, seed []byte) *Key {
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return &Key{curve: curve, secret: seed, point: []byte(pub)}
}

// Curve reports which curve the key lives on.
func (k *Key) Curve() Curve { return k.curve }

// Secret returns the derived private material; see the type comment
// for the per-curve layout.
func (k *Key) Secret() []byte { return k.secret }

// PublicBytes returns the public key the way the wire protocol replies
// with it: 0x02||y for the Edwards curves, the uncompressed 0x04||X||Y
// point for the ECDSA curves, the compressed G1 point for BLS.
func (k *Key) PublicBytes() []byte {
	switch k.curve {
	case CurveEd25519, CurveBip32Ed25519:
		return append([]byte{0x02}, k.point...)
	}
	return bytes.Clone(k.point)
}

// compressed is the form both the address hash and the base58 key
// string are computed over.
func (k *Key) compressed() []byte {
	switch k.curve {
	case CurveSecp256k1, CurveP256:
		return compressPoint(k.point)
	}
	return k.point
}

// compressPoint folds an uncompressed 0x04||X||Y point into the
// 33-byte parity||X form.
func compressPoint(uncompressed []byte) []byte {
	c := make([]byte, 33)
	c[0] = 0x02 | uncompressed[64]&1
	copy(c[1:], uncompressed[1:33])
	return c
}

// Address returns the base58check address: the curve's hash prefix
// over blake2b-160 of the compressed public key.
func (k *Key) Address() string {
	h, _ := blake2b.New(20, nil)
	h.Write(k.compressed())
	return b58.CheckEncode(k.hashPrefix(), h.Sum(nil))
}

// PublicKeyB58 returns the public key in its base58check form.
func (k *Key) PublicKeyB58() string {
	return b58.CheckEncode(k.keyPrefix(), k.compressed())
}

func (k *Key) hashPrefix() b58.Prefix {
	switch k.curve {
	case CurveSecp256k1:
		return b58.PKHSecp256k1
	case CurveP256:
		return b58.PKHP256
	case CurveBLS12381:
		return b58.PKHBLS
	}
	return b58.PKHEd25519
}

func (k *Key) keyPrefix() b58.Prefix {
	switch k.curve {
	case CurveSecp256k1:
		return b58.PKSecp256k1
	case CurveP256:
		return b58.PKP256
	case CurveBLS12381:
		return b58.PKBLS
	}
	return b58.PKEd25519
}
