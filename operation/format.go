package operation

import (
	"strconv"
	"strings"

	"github.com/mavryk-network/mvsign/b58"
)

const hexLower = "0123456789abcdef"

// entrypointNames maps the compact entrypoint tags. Tag 0xff carries a
// length-prefixed literal name instead.
var entrypointNames = []string{
	"default",
	"root",
	"do",
	"set_delegate",
	"remove_delegate",
	"deposit",
	"stake",
	"unstake",
	"finalize_unstake",
	"set_delegate_parameters",
}

var rollupKindNames = []string{"arith", "wasm_2_0_0", "riscv"}

var ballotNames = []string{"yay", "nay", "pass"}

var pkhPrefixes = []b58.Prefix{b58.PKHEd25519, b58.PKHSecp256k1, b58.PKHP256, b58.PKHBLS}

// formatPKH renders a tagged 21 byte public key hash.
func formatPKH(data []byte) (string, bool) {
	if len(data) != 21 || int(data[0]) >= len(pkhPrefixes) {
		return "", false
	}
	return b58.CheckEncode(pkhPrefixes[data[0]], data[1:]), true
}

// formatPK renders a tagged public key. The byte length depends on the
// curve the tag names.
func formatPK(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	var p b58.Prefix
	switch {
	case data[0] == 0 && len(data) == 33:
		p = b58.PKEd25519
	case data[0] == 1 && len(data) == 34:
		p = b58.PKSecp256k1
	case data[0] == 2 && len(data) == 34:
		p = b58.PKP256
	case data[0] == 3 && len(data) == 49:
		p = b58.PKBLS
	default:
		return "", false
	}
	return b58.CheckEncode(p, data[1:]), true
}

// formatAddress renders a tagged 22 byte destination. Originated and
// rollup forms carry a 20 byte hash plus one byte of padding.
func formatAddress(data []byte) (string, bool) {
	if len(data) != 22 {
		return "", false
	}
	switch data[0] {
	case 0:
		return formatPKH(data[1:])
	case 1:
		return b58.CheckEncode(b58.Contract, data[1:21]), true
	case 2:
		return b58.CheckEncode(b58.TxRollup, data[1:21]), true
	case 3:
		return b58.CheckEncode(b58.SmartRollup, data[1:21]), true
	case 4:
		return b58.CheckEncode(b58.ZkRollup, data[1:21]), true
	}
	return "", false
}

// FormatAmount renders v microMVRK the way review screens show it.
func FormatAmount(v uint64) string {
	return formatAmount(strconv.FormatUint(v, 10))
}

// formatAmount converts a decimal microMVRK magnitude to MVRK, keeping
// only the significant fractional digits.
func formatAmount(dec string) string {
	if len(dec) < 7 {
		dec = strings.Repeat("0", 7-len(dec)) + dec
	}
	cut := len(dec) - 6
	frac := strings.TrimRight(dec[cut:], "0")
	if frac == "" {
		return dec[:cut] + " MVRK"
	}
	return dec[:cut] + "." + frac + " MVRK"
}
