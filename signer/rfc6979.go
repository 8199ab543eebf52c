package signer

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"math/big"
)

// nonceDRBG is the HMAC-SHA256 generator of RFC 6979 §3.2, fixed to
// 256-bit group orders so a single V block covers one candidate.
type nonceDRBG struct {
	k, v    []byte
	order   *big.Int
	started bool
}

func newNonceDRBG(secret, digest []byte, order *big.Int) *nonceDRBG {
	z := new(big.Int).SetBytes(digest)
	z.Mod(z, order)
	material := make([]byte, 64)
	new(big.Int).SetBytes(secret).FillBytes(material[:32])
	z.FillBytes(material[32:])

	d := &nonceDRBG{
		k:     make([]byte, sha256.Size),
		v:     bytes.Repeat([]byte{1}, sha256.Size),
		order: order,
	}
	d.reseed(0, material)
	d.reseed(1, material)
	return d
}

// next returns the next candidate nonce in [1, order).
func (d *nonceDRBG) next() *big.Int {
	if d.started {
		d.step()
	}
	d.started = true
	for {
		d.v = d.mac(d.v)
		k := new(big.Int).SetBytes(d.v)
		if k.Sign() > 0 && k.Cmp(d.order) < 0 {
			return k
		}
		d.step()
	}
}

func (d *nonceDRBG) reseed(sep byte, material []byte) {
	mac := hmac.New(sha256.New, d.k)
	mac.Write(d.v)
	mac.Write([]byte{sep})
	mac.Write(material)
	d.k = mac.Sum(nil)
	d.v = d.mac(d.v)
}

// step reseeds between candidates as §3.2h requires.
func (d *nonceDRBG) step() {
	mac := hmac.New(sha256.New, d.k)
	mac.Write(d.v)
	mac.Write([]byte{0})
	d.k = mac.Sum(nil)
	d.v = d.mac(d.v)
}

func (d *nonceDRBG) mac(data []byte) []byte {
	mac := hmac.New(sha256.New, d.k)
	mac.Write(data)
	return mac.Sum(nil)
}
