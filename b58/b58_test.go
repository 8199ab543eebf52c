package b58

import (
	"bytes"
	"strings"
	"testing"
)

func allPrefixes() []Prefix {
	return []Prefix{
		PKHEd25519, PKHSecp256k1, PKHP256, PKHBLS,
		Contract, TxRollup, SmartRollup, ZkRollup,
		PKEd25519, PKSecp256k1, PKP256, PKBLS,
		SigEd25519, SigSecp256k1, SigP256, SigBLS,
		Protocol, Operation, Block, ScriptExpr, SmartRollupHash,
	}
}

func TestPrefixesAreStable(t *testing.T) {
	// every prefix must yield its name for both all-zero and all-0xFF
	// payloads, i.e. over the whole payload range
	for _, p := range allPrefixes() {
		zero := make([]byte, p.PayloadLen)
		if s := CheckEncode(p, zero); !strings.HasPrefix(s, p.Name) {
			t.Errorf("%s: zero payload encodes to %q", p.Name, s)
		}

		full := bytes.Repeat([]byte{0xFF}, p.PayloadLen)
		if s := CheckEncode(p, full); !strings.HasPrefix(s, p.Name) {
			t.Errorf("%s: max payload encodes to %q", p.Name, s)
		}
	}
}

func TestCheckDecodeRoundTrip(t *testing.T) {
	for _, p := range allPrefixes() {
		payload := make([]byte, p.PayloadLen)
		for i := range payload {
			payload[i] = byte(i*7 + 3)
		}

		s := CheckEncode(p, payload)
		got, err := CheckDecode(p, s)
		if err != nil {
			t.Fatalf("%s: CheckDecode(%q): %v", p.Name, s, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("%s: round trip payload = %x, want %x", p.Name, got, payload)
		}
	}
}

func TestCheckDecodeKnownAddresses(t *testing.T) {
	cases := []struct {
		p Prefix
		s string
	}{
		{PKHEd25519, "mv1J9DSm9h74tTSAe13vhb7918Vva4kFHSee"},
		{PKHSecp256k1, "mv2iiXSeksMFwAqKAcih8Huo9BzheC6eZRdj"},
		{PKHP256, "mv3P3eN9hKRmtDBN8REdrwFYf3YMdm6wB76U"},
		{PKEd25519, "edpktmumZ4vUDvg7VNFh5sGeSCnT7xYXhmzP2jwsiUUpUnQGoGfnja"},
		{PKSecp256k1, "sppk7b2Sh8Av9e1w7jzQ4qjZEgULFJETncKh7nWkgf29JpnJuKeXBqK"},
		{PKP256, "p2pk65YHEfEbWo7iMrz7JNjBvaYZNFBHU8vzCQEhw8rmbvAKuiGGiXS"},
	}

	for _, c := range cases {
		payload, err := CheckDecode(c.p, c.s)
		if err != nil {
			t.Fatalf("CheckDecode(%s, %q): %v", c.p.Name, c.s, err)
		}
		if len(payload) != c.p.PayloadLen {
			t.Fatalf("%q: payload len %d, want %d", c.s, len(payload), c.p.PayloadLen)
		}
		if got := CheckEncode(c.p, payload); got != c.s {
			t.Fatalf("re-encode = %q, want %q", got, c.s)
		}
	}
}

func TestCheckDecodeRejects(t *testing.T) {
	payload := make([]byte, PKHEd25519.PayloadLen)
	good := CheckEncode(PKHEd25519, payload)

	// corrupt a middle character
	bad := []byte(good)
	if bad[10] == 'z' {
		bad[10] = 'x'
	} else {
		bad[10] = 'z'
	}
	if _, err := CheckDecode(PKHEd25519, string(bad)); err == nil {
		t.Fatal("corrupted string must not decode")
	}

	// decode under the wrong prefix
	if _, err := CheckDecode(PKHSecp256k1, good); err != ErrPrefix {
		t.Fatalf("wrong prefix: got %v, want ErrPrefix", err)
	}

	// far too short
	if _, err := CheckDecode(PKHEd25519, "mv1"); err == nil {
		t.Fatal("short string must not decode")
	}
}

func TestRawEncode(t *testing.T) {
	if got := RawEncode([]byte{0x00}); got != "1" {
		t.Fatalf("RawEncode(00) = %q, want %q", got, "1")
	}
	if got := RawEncode([]byte{0x00, 0x00}); got != "11" {
		t.Fatalf("RawEncode(0000) = %q, want %q", got, "11")
	}
}
