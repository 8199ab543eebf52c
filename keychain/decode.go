package keychain

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// MaxPathDepth caps the number of components a derivation path may
// carry on the wire.
const MaxPathDepth = 10

// hardened is the high bit marking a hardened path component.
const hardened uint32 = 0x80000000

// Path is a BIP32 derivation path. Hardened components keep the high
// bit set.
type Path []uint32

// ParsePath decodes the wire form of a derivation path: one component
// count byte followed by that many big-endian 32-bit indices. The
// payload must be spanned exactly; trailing bytes are an error.
func ParsePath(raw []byte) (Path, error) {
	if len(raw) < 1 {
		return nil, ErrBadPath
	}
	n := int(raw[0])
	if n > MaxPathDepth {
		return nil, ErrPathDepth
	}
	if len(raw) != 1+4*n {
		return nil, ErrBadPath
	}
	p := make(Path, n)
	for i := range p {
		p[i] = binary.BigEndian.Uint32(raw[1+4*i:])
	}
	return p, nil
}

// Encode renders the path back into its wire form.
func (p Path) Encode() []byte {
	buf := make([]byte, 1+4*len(p))
	buf[0] = byte(len(p))
	for i, idx := range p {
		binary.BigEndian.PutUint32(buf[1+4*i:], idx)
	}
	return buf
}

// String renders the usual m/44'/1969'/0'/0' notation.
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteByte('m')
	for _, idx := range p {
		sb.WriteByte('/')
		sb.WriteString(strconv.FormatUint(uint64(idx&^hardened), 10))
		if idx&hardened != 0 {
			sb.WriteByte('\'')
		}
	}
	return sb.String()
}
