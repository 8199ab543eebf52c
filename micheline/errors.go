package micheline

import (
	"errors"
	"fmt"
)

// Blocking conditions reported while decoding. They mean the machine
// paused, not that it failed: feed the next chunk or drain the window
// and call Run again.
var (
	// ErrNeedMoreInput is reported when the current input chunk ran out
	// before the value under decode was finished.
	ErrNeedMoreInput = errors.New("micheline: need more input")

	// ErrWindowFull is reported when the output window has to be handed
	// to the reviewer before decoding can make further progress.
	ErrWindowFull = errors.New("micheline: output window full")
)

// ErrorKind enumerates the ways decoding can fail. Kinds implement
// error themselves so call sites can match them with errors.Is through
// the wrapping DecodeError.
type ErrorKind uint8

const (
	ErrInvalidTag ErrorKind = iota + 1
	ErrInvalidOp
	ErrInvalidData
	ErrUnsupported
	ErrTooLarge
	ErrTooDeep
	ErrInvalidState
)

var errKindText = [...]string{
	ErrInvalidTag:   "invalid tag",
	ErrInvalidOp:    "invalid primitive",
	ErrInvalidData:  "invalid data",
	ErrUnsupported:  "unsupported",
	ErrTooLarge:     "value too large",
	ErrTooDeep:      "nesting too deep",
	ErrInvalidState: "invalid state",
}

var errKindName = [...]string{
	ErrInvalidTag:   "ERR_INVALID_TAG",
	ErrInvalidOp:    "ERR_INVALID_OP",
	ErrInvalidData:  "ERR_INVALID_DATA",
	ErrUnsupported:  "ERR_UNSUPPORTED",
	ErrTooLarge:     "ERR_TOO_LARGE",
	ErrTooDeep:      "ERR_TOO_DEEP",
	ErrInvalidState: "ERR_INVALID_STATE",
}

func (k ErrorKind) Error() string {
	if int(k) < len(errKindText) && errKindText[k] != "" {
		return errKindText[k]
	}
	return fmt.Sprintf("error kind %d", uint8(k))
}

// Name returns the stable identifier shown on parse error screens.
func (k ErrorKind) Name() string {
	if int(k) < len(errKindName) && errKindName[k] != "" {
		return errKindName[k]
	}
	return "ERR_UNKNOWN"
}

// DecodeError pins a failure to the input offset that produced it.
// A decoder that returned one refuses all further input.
type DecodeError struct {
	Kind   ErrorKind
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Kind.Error(), e.Offset)
}

func (e *DecodeError) Unwrap() error { return e.Kind }
