package keychain

import "errors"

var (
	// ErrUnknownCurve is returned for a curve code outside the table
	// CurveFromCode knows.
	ErrUnknownCurve = errors.New("keychain: unknown curve code")

	// ErrBadPath is returned when a serialized derivation path does not
	// span its buffer exactly.
	ErrBadPath = errors.New("keychain: malformed derivation path")

	// ErrPathDepth is returned when a path carries more than
	// MaxPathDepth components.
	ErrPathDepth = errors.New("keychain: derivation path too deep")

	// ErrHardenedOnly is returned when a SLIP-10 Ed25519 path contains a
	// non-hardened index, which that tree cannot derive.
	ErrHardenedOnly = errors.New("keychain: index must be hardened")

	// ErrBadSeed is returned for master seeds outside 16..64 bytes.
	ErrBadSeed = errors.New("keychain: bad seed length")

	// ErrUnusableKey is returned on the (negligible) chance a derivation
	// step lands outside the curve's scalar field.
	ErrUnusableKey = errors.New("keychain: derived key unusable")
)
