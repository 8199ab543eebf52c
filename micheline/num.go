package micheline

import "math/big"

// numMaxBits caps the magnitude of a wire number. Values needing more
// bits fail with ErrTooLarge at the byte that overflows.
const numMaxBits = 256

// NumReader accumulates a variable length wire number byte by byte.
//
// Every byte carries seven payload bits and a continuation flag in bit
// seven. Signed values store their sign in bit six of the first byte
// and only six payload bits there. Payload groups stack little endian.
type NumReader struct {
	natural bool
	neg     bool
	width   uint
	mag     big.Int
	grp     big.Int
	done    bool
	text    string
}

// Reset prepares the reader for a new number. Natural numbers have no
// sign bit and refuse none.
func (n *NumReader) Reset(natural bool) {
	n.natural = natural
	n.neg = false
	n.width = 0
	n.mag.SetInt64(0)
	n.done = false
	n.text = ""
}

// Step consumes one byte and reports whether the number is complete.
func (n *NumReader) Step(b byte) (bool, error) {
	if n.done {
		return false, ErrInvalidState
	}
	v := uint64(b & 0x7F)
	bits := uint(7)
	if !n.natural && n.width == 0 {
		n.neg = b&0x40 != 0
		v = uint64(b & 0x3F)
		bits = 6
	}
	n.grp.SetUint64(v)
	n.grp.Lsh(&n.grp, n.width)
	n.mag.Or(&n.mag, &n.grp)
	n.width += bits
	if n.mag.BitLen() > numMaxBits {
		return false, ErrTooLarge
	}
	if b&0x80 == 0 {
		n.done = true
		n.text = n.mag.String()
	}
	return n.done, nil
}

// Done reports whether a full number has been read.
func (n *NumReader) Done() bool { return n.done }

// Negative reports the sign read from the first byte.
func (n *NumReader) Negative() bool { return n.neg }

// Text returns the decimal magnitude, without sign. Valid once done.
func (n *NumReader) Text() string { return n.text }

// Uint64 converts the value, reporting false for negative numbers and
// magnitudes beyond 64 bits.
func (n *NumReader) Uint64() (uint64, bool) {
	if !n.done || n.neg || !n.mag.IsUint64() {
		return 0, false
	}
	return n.mag.Uint64(), true
}

// BigInt returns the signed value as a fresh integer.
func (n *NumReader) BigInt() *big.Int {
	v := new(big.Int).Set(&n.mag)
	if n.neg {
		v.Neg(v)
	}
	return v
}
