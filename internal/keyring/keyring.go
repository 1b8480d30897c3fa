// Package keyring implements the Ed25519 trust chain: generation,
// signing, verification, and file-based persistence of keys, plus the
// wire codec used to carry them between client and server.
//
// Trust is established by signing: an admin key signs a server key, a
// server key signs each client key it has decided to trust. Signature
// verification runs over a canonical encoding of the subject key's kind
// and raw bytes; that canonical form is fixed independently of any
// future change to the rest of the wire codec, so existing signatures
// keep verifying even if unrelated framing changes.
package keyring

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"

	"github.com/pkg/errors"
)

// Variant distinguishes a key that carries only public material from
// one that also carries a private half.
type Variant uint8

const (
	VariantPublic Variant = iota
	VariantPair
)

func (v Variant) String() string {
	if v == VariantPair {
		return "pair"
	}
	return "public"
}

var (
	// ErrNoPrivateKey is returned when an operation needing a private
	// key (signing) is attempted on a public-only Key.
	ErrNoPrivateKey = errors.New("keyring: key has no private half")
	// ErrBadSignature is returned by Verify when the signature does not
	// match.
	ErrBadSignature = errors.New("keyring: signature does not verify")
	// ErrCorrupt is returned when a persisted or received key fails to
	// parse.
	ErrCorrupt = errors.New("keyring: corrupt key data")
)

// Key is one node in the trust chain: an identity, its Ed25519 public
// key, optionally its private key, and optionally a signature issued by
// whichever key is meant to vouch for it.
type Key struct {
	Variant    Variant
	Identifier string
	Public     ed25519.PublicKey
	Private    ed25519.PrivateKey // nil unless Variant == VariantPair
	Signature  []byte             // nil until signed by an issuer
}

// GenerateKeyPair creates a fresh, unsigned key pair for identifier.
func GenerateKeyPair(identifier string) (*Key, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "keyring: generate")
	}
	return &Key{
		Variant:    VariantPair,
		Identifier: identifier,
		Public:     pub,
		Private:    priv,
	}, nil
}

// PublicOnly returns a copy of k with its private half stripped, the
// form sent over the wire and handed to peers.
func (k *Key) PublicOnly() *Key {
	return &Key{
		Variant:    VariantPublic,
		Identifier: k.Identifier,
		Public:     append(ed25519.PublicKey(nil), k.Public...),
		Signature:  append([]byte(nil), k.Signature...),
	}
}

// canonicalSubject is the exact byte sequence a signature is computed
// over: a 4-byte variant tag (always VariantPublic, since only the
// public identity is ever attested to) followed by the raw public key
// bytes. The identifier and any existing signature are deliberately
// excluded.
func canonicalSubject(k *Key) []byte {
	var buf bytes.Buffer
	var tag [4]byte
	tag[0] = byte(VariantPublic)
	buf.Write(tag[:])
	buf.Write(k.Public)
	return buf.Bytes()
}

// Sign has signer vouch for subject, returning the signature that
// Verify checks. signer must carry a private key.
func Sign(signer *Key, subject *Key) ([]byte, error) {
	if signer.Private == nil {
		return nil, ErrNoPrivateKey
	}
	return ed25519.Sign(signer.Private, canonicalSubject(subject)), nil
}

// SignInPlace signs subject with signer and stores the result on
// subject.Signature.
func SignInPlace(signer *Key, subject *Key) error {
	sig, err := Sign(signer, subject)
	if err != nil {
		return err
	}
	subject.Signature = sig
	return nil
}

// Verify reports whether subject.Signature is a valid signature by
// signerPublic over subject's canonical encoding.
func Verify(signerPublic ed25519.PublicKey, subject *Key) bool {
	if len(subject.Signature) == 0 {
		return false
	}
	return ed25519.Verify(signerPublic, canonicalSubject(subject), subject.Signature)
}

// Equal reports whether two keys carry the same raw public key bytes.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return false
	}
	return bytes.Equal(k.Public, other.Public)
}

// Fingerprint returns the hex encoding of k's full public key, for
// display purposes.
func (k *Key) Fingerprint() string {
	return hex.EncodeToString(k.Public)
}

// SaveToFile persists k (identifier, public key, private key if
// present, and signature) to two sibling files under dir:
// <dir>/<name>.pub and, if k carries a private half, <dir>/<name>.key.
func SaveToFile(dir, name string, k *Key) error {
	pubPath := dir + "/" + name + ".pub"
	data := Encode(k.PublicOnly())
	if err := os.WriteFile(pubPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "keyring: save %s", pubPath)
	}
	if k.Private == nil {
		return nil
	}
	keyPath := dir + "/" + name + ".key"
	if err := os.WriteFile(keyPath, append([]byte(nil), k.Private...), 0o600); err != nil {
		return errors.Wrapf(err, "keyring: save %s", keyPath)
	}
	return nil
}

// LoadFromFile loads the key pair saved under name by SaveToFile. If
// only the .pub half is present, the returned Key has no private
// material.
func LoadFromFile(dir, name string) (*Key, error) {
	pubPath := dir + "/" + name + ".pub"
	pubData, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, errors.Wrapf(err, "keyring: load %s", pubPath)
	}
	k, err := Decode(pubData)
	if err != nil {
		return nil, err
	}
	keyPath := dir + "/" + name + ".key"
	priv, err := os.ReadFile(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return k, nil
		}
		return nil, errors.Wrapf(err, "keyring: load %s", keyPath)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrCorrupt, "%s", keyPath)
	}
	k.Variant = VariantPair
	k.Private = ed25519.PrivateKey(priv)
	return k, nil
}
