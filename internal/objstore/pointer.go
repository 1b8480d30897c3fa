// Package objstore implements the content-addressed object store:
// immutable byte blobs keyed by the SHA-256 hash of their content.
package objstore

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Pointer is the SHA-256 hash of an object's content.
type Pointer [sha256.Size]byte

// Zero is the pointer that never identifies any stored content.
var Zero Pointer

// IsZero reports whether p is the zero pointer.
func (p Pointer) IsZero() bool {
	return p == Zero
}

// Hex returns the hex encoding of p.
func (p Pointer) Hex() string {
	return hex.EncodeToString(p[:])
}

func (p Pointer) String() string {
	if p.IsZero() {
		return "zero"
	}
	return p.Hex()
}

// PointerFromHex parses a hex string produced by Hex.
func PointerFromHex(s string) (Pointer, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != sha256.Size {
		return Pointer{}, errors.Wrapf(ErrNotAPointer, "%q", s)
	}
	var p Pointer
	copy(p[:], b)
	return p, nil
}

// PointerTo computes the pointer identifying the given content.
func PointerTo(content []byte) Pointer {
	return Pointer(sha256.Sum256(content))
}

// PointerFromBytes parses a raw 32-byte pointer, as read off the wire or
// out of storage.
func PointerFromBytes(b []byte) (Pointer, error) {
	if len(b) != sha256.Size {
		return Pointer{}, errors.Wrapf(ErrNotAPointer, "%d bytes", len(b))
	}
	var p Pointer
	copy(p[:], b)
	return p, nil
}
