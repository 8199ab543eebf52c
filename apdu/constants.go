package apdu

import "fmt"

const (
	// ClaDefault is the only instruction class the device accepts.
	ClaDefault = 0x80

	// Header fields: cla(1) + ins(1) + p1(1) + p2(1) + lc(1)
	HeaderLen = 1 + 1 + 1 + 1 + 1

	// MaxPacketSize is the largest allowed payload (excluding header).
	MaxPacketSize = 235
)

// Packet index codes carried in P1. The high bit flags the final
// packet of a multi-packet exchange.
const (
	IndexFirst byte = 0x00
	IndexOther byte = 0x01
	IndexLast  byte = 0x80
)

// Ins selects the operation of a command.
type Ins byte

const (
	InsVersion           Ins = 0x00
	InsAuthorizeBaking   Ins = 0x01
	InsGetPublicKey      Ins = 0x02
	InsPromptPublicKey   Ins = 0x03
	InsSign              Ins = 0x04
	InsSignUnsafe        Ins = 0x05
	InsReset             Ins = 0x06
	InsQueryAuthKey      Ins = 0x07
	InsQueryMainHWM      Ins = 0x08
	InsGit               Ins = 0x09
	InsSetup             Ins = 0x0a
	InsQueryAllHWM       Ins = 0x0b
	InsDeauthorize       Ins = 0x0c
	InsQueryAuthKeyCurve Ins = 0x0d
	InsHMAC              Ins = 0x0e
	InsSignWithHash      Ins = 0x0f
)

func (i Ins) String() string {
	switch i {
	case InsVersion:
		return "version"
	case InsAuthorizeBaking:
		return "authorize baking"
	case InsGetPublicKey:
		return "get public key"
	case InsPromptPublicKey:
		return "prompt public key"
	case InsSign:
		return "sign"
	case InsSignUnsafe:
		return "sign unsafe"
	case InsReset:
		return "reset"
	case InsQueryAuthKey:
		return "query auth key"
	case InsQueryMainHWM:
		return "query main hwm"
	case InsGit:
		return "git"
	case InsSetup:
		return "setup"
	case InsQueryAllHWM:
		return "query all hwm"
	case InsDeauthorize:
		return "deauthorize"
	case InsQueryAuthKeyCurve:
		return "query auth key with curve"
	case InsHMAC:
		return "hmac"
	case InsSignWithHash:
		return "sign with hash"
	default:
		return "unknown"
	}
}

// Status is the two byte word closing every response.
type Status uint16

const (
	StatusOK                  Status = 0x9000
	StatusSecurity            Status = 0x6982
	StatusHIDRequired         Status = 0x6983
	StatusReject              Status = 0x6985
	StatusWrongValues         Status = 0x6a80
	StatusDataNotFound        Status = 0x6a88
	StatusWrongParam          Status = 0x6b00
	StatusWrongLength         Status = 0x6c00
	StatusInvalidIns          Status = 0x6d00
	StatusInvalidClass        Status = 0x6e00
	StatusWrongLengthForIns   Status = 0x917e
	StatusUnexpectedState     Status = 0x9001
	StatusUnexpectedSignState Status = 0x9002
	StatusUnknownCxErr        Status = 0x9003
	StatusMemoryError         Status = 0x9200
	StatusParseError          Status = 0x9405
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSecurity:
		return "security"
	case StatusHIDRequired:
		return "hid required"
	case StatusReject:
		return "rejected"
	case StatusWrongValues:
		return "wrong values"
	case StatusDataNotFound:
		return "referenced data not found"
	case StatusWrongParam:
		return "wrong parameter"
	case StatusWrongLength:
		return "wrong length"
	case StatusInvalidIns:
		return "invalid instruction"
	case StatusInvalidClass:
		return "invalid class"
	case StatusWrongLengthForIns:
		return "wrong length for instruction"
	case StatusUnexpectedState:
		return "unexpected state"
	case StatusUnexpectedSignState:
		return "unexpected sign state"
	case StatusUnknownCxErr:
		return "unknown crypto error"
	case StatusMemoryError:
		return "memory error"
	case StatusParseError:
		return "parse error"
	default:
		return fmt.Sprintf("status 0x%04x", uint16(s))
	}
}
