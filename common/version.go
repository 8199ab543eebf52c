package common

import "fmt"

// AppKind discriminates the signing personalities a device can expose.
type AppKind byte

const (
	AppKindWallet AppKind = 0x00
	AppKindBaking AppKind = 0x01
)

func (k AppKind) String() string {
	switch k {
	case AppKindWallet:
		return "WALLET"
	case AppKindBaking:
		return "BAKING"
	default:
		return fmt.Sprintf("AppKind(0x%02x)", byte(k))
	}
}

// Version identifies the signing engine build. The wire form is the
// four bytes kind, major, minor, patch in that order.
type Version struct {
	Kind  AppKind
	Major byte
	Minor byte
	Patch byte
}

// Current is the version reported by the VERSION instruction.
var Current = Version{Kind: AppKindWallet, Major: 3, Minor: 0, Patch: 6}

func (v Version) Bytes() []byte {
	return []byte{byte(v.Kind), v.Major, v.Minor, v.Patch}
}

func (v Version) String() string {
	return fmt.Sprintf("%s %d.%d.%d", v.Kind, v.Major, v.Minor, v.Patch)
}

// GitCommit is stamped at build time via
// -ldflags "-X github.com/mavryk-network/mvsign/common.GitCommit=...".
var GitCommit = "dev"

// GitBytes returns the commit string as a NUL terminated byte slice,
// the form the GIT instruction replies with.
func GitBytes() []byte {
	return append([]byte(GitCommit), 0x00)
}
