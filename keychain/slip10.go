package keychain

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// slip10Ed25519 walks the SLIP-10 Ed25519 tree. That tree defines
// hardened children only; the chain rejects anything else.
func slip10Ed25519(seed []byte, path Path) ([]byte, error) {
	I := hmacSHA512([]byte("ed25519 seed"), seed)
	key, chain := I[:32], I[32:]
	for _, idx := range path {
		if idx&hardened == 0 {
			return nil, ErrHardenedOnly
		}
		data := make([]byte, 0, 37)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, idx)
		I = hmacSHA512(chain, data)
		key, chain = I[:32], I[32:]
	}
	return key, nil
}

// weierstrass bundles what the shared SLIP-10 walk needs from an ECDSA
// curve: the master HMAC key, the group order and the compressed
// public point of a scalar (parents of non-hardened children).
type weierstrass struct {
	seedKey []byte
	order   *big.Int
	point   func(d []byte) ([]byte, error)
}

var secpTree = weierstrass{
	seedKey: []byte("Bitcoin seed"),
	order:   secp256k1.S256().N,
	point: func(d []byte) ([]byte, error) {
		return secp256k1.PrivKeyFromBytes(d).PubKey().SerializeCompressed(), nil
	},
}

var p256Tree = weierstrass{
	seedKey: []byte("Nist256p1 seed"),
	order:   elliptic.P256().Params().N,
	point: func(d []byte) ([]byte, error) {
		priv, err := ecdh.P256().NewPrivateKey(d)
		if err != nil {
			return nil, ErrUnusableKey
		}
		return compressPoint(priv.PublicKey().Bytes()), nil
	},
}

// slip10ECDSA walks a short-Weierstrass SLIP-10 tree, applying the
// retry rules for out-of-range intermediate scalars at the root and at
// every child step.
func slip10ECDSA(tree weierstrass, seed []byte, path Path) ([]byte, error) {
	I := hmacSHA512(tree.seedKey, seed)
	for {
		il := new(big.Int).SetBytes(I[:32])
		if il.Sign() != 0 && il.Cmp(tree.order) < 0 {
			break
		}
		I = hmacSHA512(tree.seedKey, I)
	}
	key := new(big.Int).SetBytes(I[:32])
	chain := I[32:]

	var kbuf [32]byte
	for _, idx := range path {
		key.FillBytes(kbuf[:])
		var data []byte
		if idx&hardened != 0 {
			data = make([]byte, 0, 37)
			data = append(data, 0)
			data = append(data, kbuf[:]...)
		} else {
			pub, err := tree.point(kbuf[:])
			if err != nil {
				return nil, err
			}
			data = append(data, pub...)
		}
		data = binary.BigEndian.AppendUint32(data, idx)

		for {
			I = hmacSHA512(chain, data)
			il := new(big.Int).SetBytes(I[:32])
			child := new(big.Int).Add(il, key)
			child.Mod(child, tree.order)
			if il.Cmp(tree.order) < 0 && child.Sign() != 0 {
				key, chain = child, I[32:]
				break
			}
			data = make([]byte, 0, 37)
			data = append(data, 1)
			data = append(data, I[32:]...)
			data = binary.BigEndian.AppendUint32(data, idx)
		}
	}

	key.FillBytes(kbuf[:])
	out := make([]byte, 32)
	copy(out, kbuf[:])
	return out, nil
}

func hmacSHA512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
