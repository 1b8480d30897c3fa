package keyring

import (
	"crypto/ed25519"
	"fmt"

	"github.com/ksyncdev/ksync/internal/codec"
)

// WriteKey appends k's wire encoding to w: a 4-byte variant tag, the
// identifier, the raw public key bytes, the signature (empty if none),
// and, only for a VariantPair key, the private key bytes.
func WriteKey(w *codec.Writer, k *Key) {
	w.PutUint32(uint32(k.Variant))
	w.PutString(k.Identifier)
	w.PutBytes(k.Public)
	w.PutBytes(k.Signature)
	if k.Variant == VariantPair {
		w.PutBytes(k.Private)
	}
}

// ReadKey decodes a Key written by WriteKey.
func ReadKey(r *codec.Reader) (*Key, error) {
	variant := Variant(r.Uint32())
	k := &Key{
		Variant:    variant,
		Identifier: r.String(),
		Public:     ed25519.PublicKey(r.Bytes()),
		Signature:  r.Bytes(),
	}
	if variant == VariantPair {
		k.Private = ed25519.PrivateKey(r.Bytes())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(k.Public) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key length %d: %w", len(k.Public), ErrCorrupt)
	}
	return k, nil
}

// Encode returns k's standalone wire encoding.
func Encode(k *Key) []byte {
	w := codec.NewWriter()
	WriteKey(w, k)
	return w.Bytes()
}

// Decode parses a standalone key encoding produced by Encode.
func Decode(data []byte) (*Key, error) {
	r := codec.NewReader(data)
	k, err := ReadKey(r)
	if err != nil {
		return nil, err
	}
	if len(r.Remaining()) != 0 {
		return nil, fmt.Errorf("%d trailing bytes: %w", len(r.Remaining()), ErrCorrupt)
	}
	return k, nil
}
