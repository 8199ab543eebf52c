// Package b58 implements the base58check encoding the wire formats and
// screens use for hashes, addresses, keys and signatures.
package b58

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

var (
	ErrChecksum = errors.New("b58: checksum mismatch")
	ErrPrefix   = errors.New("b58: prefix mismatch")
	ErrLength   = errors.New("b58: bad payload length")
)

// CheckEncode returns Base58(prefix || payload || doubleSHA256(prefix||payload)[0:4]).
func CheckEncode(p Prefix, payload []byte) string {
	n := len(p.Bytes) + len(payload)
	buf := make([]byte, n+4)
	copy(buf, p.Bytes)
	copy(buf[len(p.Bytes):], payload)

	sum1 := sha256.Sum256(buf[:n])
	sum2 := sha256.Sum256(sum1[:])
	copy(buf[n:], sum2[:4])

	return base58.Encode(buf)
}

// CheckDecode reverses CheckEncode, verifying checksum, prefix bytes
// and payload length. The returned slice is the bare payload.
func CheckDecode(p Prefix, s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("b58: %w", err)
	}
	if len(raw) < len(p.Bytes)+4 {
		return nil, ErrLength
	}

	n := len(raw) - 4
	sum1 := sha256.Sum256(raw[:n])
	sum2 := sha256.Sum256(sum1[:])
	for i := 0; i < 4; i++ {
		if raw[n+i] != sum2[i] {
			return nil, ErrChecksum
		}
	}

	for i := range p.Bytes {
		if raw[i] != p.Bytes[i] {
			return nil, ErrPrefix
		}
	}

	payload := raw[len(p.Bytes):n]
	if len(payload) != p.PayloadLen {
		return nil, ErrLength
	}
	return payload, nil
}

// RawEncode is plain base58 with no prefix and no checksum. Screens use
// it to show digests that are not meant to be pasted back anywhere.
func RawEncode(data []byte) string {
	return base58.Encode(data)
}
