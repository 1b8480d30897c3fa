// Package treecodec encodes and decodes ksynctree.Node trees to the
// deterministic binary form stored as object content and sent over the
// wire. The format is a 4-byte kind tag, an 8-byte timestamp, and then
// kind-specific payload: a File carries its 32-byte object pointer; a
// tombstone carries nothing more; a Dir carries a child count followed
// by name/child pairs in sorted order, recursively encoded the same
// way.
package treecodec

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ksyncdev/ksync/internal/codec"
	"github.com/ksyncdev/ksync/internal/ksynctree"
	"github.com/ksyncdev/ksync/internal/objstore"
)

// ErrUnknownKind is returned when a decoded kind tag doesn't match any
// of KindDir, KindFile, KindTombstone.
var ErrUnknownKind = errors.New("treecodec: unknown node kind")

// WriteNode appends the encoding of n to w.
func WriteNode(w *codec.Writer, n *ksynctree.Node) error {
	w.PutUint32(uint32(n.Kind))
	w.PutUint64(uint64(n.Timestamp))
	switch n.Kind {
	case ksynctree.KindFile:
		w.PutBytes(n.Object[:])
	case ksynctree.KindTombstone:
		// No further payload.
	case ksynctree.KindDir:
		names := make([]string, 0, len(n.Children))
		for name := range n.Children {
			names = append(names, name)
		}
		sort.Strings(names)
		w.PutUint64(uint64(len(names)))
		for _, name := range names {
			w.PutString(name)
			if err := WriteNode(w, n.Children[name]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%d: %w", n.Kind, ErrUnknownKind)
	}
	return nil
}

// ReadNode decodes one node (and, for a Dir, its full subtree) from r.
func ReadNode(r *codec.Reader) (*ksynctree.Node, error) {
	kind := ksynctree.Kind(r.Uint32())
	ts := int64(r.Uint64())
	n := &ksynctree.Node{Kind: kind, Timestamp: ts}
	switch kind {
	case ksynctree.KindFile:
		raw := r.Bytes()
		if r.Err() != nil {
			return nil, r.Err()
		}
		p, err := objstore.PointerFromBytes(raw)
		if err != nil {
			return nil, err
		}
		n.Object = p
	case ksynctree.KindTombstone:
		// Nothing more to read.
	case ksynctree.KindDir:
		count := r.Uint64()
		n.Children = make(map[string]*ksynctree.Node, count)
		for i := uint64(0); i < count; i++ {
			name := r.String()
			child, err := ReadNode(r)
			if err != nil {
				return nil, err
			}
			n.Children[name] = child
		}
	default:
		return nil, fmt.Errorf("%d: %w", kind, ErrUnknownKind)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return n, nil
}

// Encode returns the standalone encoding of n, suitable for storage as
// object content.
func Encode(n *ksynctree.Node) []byte {
	w := codec.NewWriter()
	if err := WriteNode(w, n); err != nil {
		panic(err)
	}
	return w.Bytes()
}

// Decode parses a standalone node encoding produced by Encode.
func Decode(data []byte) (*ksynctree.Node, error) {
	r := codec.NewReader(data)
	n, err := ReadNode(r)
	if err != nil {
		return nil, err
	}
	if len(r.Remaining()) != 0 {
		return nil, fmt.Errorf("%d trailing bytes: %w", len(r.Remaining()), codec.ErrTruncated)
	}
	return n, nil
}
