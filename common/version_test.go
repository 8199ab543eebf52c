package common

import (
	"bytes"
	"testing"
)

func TestVersionBytes(t *testing.T) {
	v := Version{Kind: AppKindWallet, Major: 3, Minor: 0, Patch: 6}
	if got, want := v.Bytes(), []byte{0x00, 3, 0, 6}; !bytes.Equal(got, want) {
		t.Fatalf("Bytes() = %x, want %x", got, want)
	}
	if got, want := v.String(), "WALLET 3.0.6"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestGitBytesNulTerminated(t *testing.T) {
	b := GitBytes()
	if len(b) == 0 || b[len(b)-1] != 0x00 {
		t.Fatalf("GitBytes() = %x, want NUL terminated", b)
	}
	if got := string(b[:len(b)-1]); got != GitCommit {
		t.Fatalf("GitBytes() prefix = %q, want %q", got, GitCommit)
	}
}
