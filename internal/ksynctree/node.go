// Package ksynctree implements the recursive, versioned directory tree:
// a pure, immutable Dir/File/tombstone Node value and the path
// operations over it (insert, delete, make_dir, merge, file listing,
// full traversal).
//
// A Node is never mutated in place: every operation that changes a tree
// returns a new root, sharing unaffected subtrees with the receiver
// (persistent-tree copy-on-write). There is no parent pointer and no
// reference counting; callers hold whichever root they last obtained
// and commit a new one explicitly, which keeps concurrent readers safe
// without locking the tree itself.
package ksynctree

import (
	"fmt"
	"time"

	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/objstore"
	"github.com/pkg/errors"
)

// Kind discriminates the three node shapes.
type Kind uint8

const (
	KindDir Kind = iota
	KindFile
	KindTombstone
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	case KindTombstone:
		return "tombstone"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

var (
	// ErrNotADirectory is returned when a path operation expects to
	// descend through a Dir and finds a File or tombstone instead.
	ErrNotADirectory = errors.New("ksynctree: not a directory")
	// ErrInvalidFilename is returned for operations that name the root
	// as if it had a parent/child relationship it doesn't have.
	ErrInvalidFilename = errors.New("ksynctree: invalid filename")
	// ErrNotFound is returned when a path does not resolve to a node at
	// all (as opposed to resolving to a tombstone).
	ErrNotFound = errors.New("ksynctree: not found")
)

// Node is a directory, a file, or a tombstone, each carrying a
// timestamp. Node values are treated as immutable after construction:
// every exported operation returns a new Node rather than mutating the
// receiver. Callers must not mutate a Node's Children map directly.
type Node struct {
	Kind      Kind
	Timestamp int64 // nanoseconds since the Unix epoch
	Object    objstore.Pointer
	Children  map[string]*Node
}

func now() int64 {
	return time.Now().UnixNano()
}

// NewDir returns a fresh, empty directory node.
func NewDir() *Node {
	return &Node{Kind: KindDir, Timestamp: now(), Children: map[string]*Node{}}
}

// NewFile returns a fresh file node referencing object.
func NewFile(object objstore.Pointer) *Node {
	return &Node{Kind: KindFile, Timestamp: now(), Object: object}
}

func newTombstone(ts int64) *Node {
	return &Node{Kind: KindTombstone, Timestamp: ts}
}

// IsDir reports whether n is a live directory.
func (n *Node) IsDir() bool {
	return n != nil && n.Kind == KindDir
}

// IsTombstone reports whether n marks a deletion.
func (n *Node) IsTombstone() bool {
	return n != nil && n.Kind == KindTombstone
}

// HasChild reports whether n is a Dir with a child named name (live,
// tombstone, or subdirectory alike).
func (n *Node) HasChild(name string) bool {
	if !n.IsDir() {
		return false
	}
	_, ok := n.Children[name]
	return ok
}

// GetChild returns n's child named name, or nil. n must be a Dir.
func (n *Node) GetChild(name string) *Node {
	if !n.IsDir() {
		return nil
	}
	return n.Children[name]
}

// clone returns a shallow copy of n: a distinct Node value with its own
// Children map header, sharing child pointers with n.
func (n *Node) clone() *Node {
	c := *n
	return &c
}

// withChild returns a copy of n (a Dir) with name bound to child.
func (n *Node) withChild(name string, child *Node) (*Node, error) {
	const method = "Node.withChild"
	if !n.IsDir() {
		return nil, errorf(method, "%q: %w", name, ErrNotADirectory)
	}
	cp := n.clone()
	children := make(map[string]*Node, len(n.Children)+1)
	for k, v := range n.Children {
		children[k] = v
	}
	children[name] = child
	cp.Children = children
	return cp, nil
}

// Traverse walks from n along p's components, returning the node found
// there, or nil if any intermediate component is absent. Traverse(Root)
// returns n itself. It errors with ErrNotADirectory if a non-Dir is
// encountered before the path is exhausted.
func (n *Node) Traverse(p kpath.Path) (*Node, error) {
	cur := n
	for _, part := range p.Parts() {
		if !cur.IsDir() {
			return nil, errors.Wrapf(ErrNotADirectory, "%s", p)
		}
		child, ok := cur.Children[part]
		if !ok {
			return nil, nil
		}
		cur = child
	}
	return cur, nil
}

// replace returns a tree equal to n except that the node reached by
// descending through parts has been replaced by fn's result. fn receives
// the existing node there (nil if it does not exist). Every directory
// along the way except possibly the final component must already exist.
func (n *Node) replace(parts []string, fn func(existing *Node) (*Node, error)) (*Node, error) {
	const method = "Node.replace"
	if len(parts) == 0 {
		return fn(n)
	}
	if !n.IsDir() {
		return nil, errorf(method, "%w", ErrNotADirectory)
	}
	head, rest := parts[0], parts[1:]
	child := n.Children[head]
	if len(rest) == 0 {
		newChild, err := fn(child)
		if err != nil {
			return nil, err
		}
		return n.withChild(head, newChild)
	}
	if child == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s", head)
	}
	newChild, err := child.replace(rest, fn)
	if err != nil {
		return nil, err
	}
	return n.withChild(head, newChild)
}

// MakeDir creates one directory at the given path. The parent must
// already exist and be a Dir. If the named child already exists -
// whether as a Dir, a File, or a tombstone - this is a silent no-op
// rather than an error.
func (n *Node) MakeDir(p kpath.Path) (*Node, error) {
	parent, name := p.Split()
	if name == "" {
		return nil, errors.Wrapf(ErrInvalidFilename, "%s", p)
	}
	parentNode, err := n.Traverse(parent)
	if err != nil {
		return nil, err
	}
	if parentNode == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s", parent)
	}
	if !parentNode.IsDir() {
		return nil, errors.Wrapf(ErrNotADirectory, "%s", parent)
	}
	return n.replace(parent.Parts(), func(dir *Node) (*Node, error) {
		if dir.HasChild(name) {
			return dir, nil
		}
		return dir.withChild(name, NewDir())
	})
}

// MakeDirRecursive creates every ancestor directory of p, in root-to-leaf
// order, and then p itself, skipping any that already exist.
func (n *Node) MakeDirRecursive(p kpath.Path) (*Node, error) {
	cur := n
	for _, anc := range p.Ancestors() {
		var err error
		cur, err = cur.MakeDir(anc)
		if err != nil {
			return nil, err
		}
	}
	if p.IsRoot() {
		return cur, nil
	}
	return cur.MakeDir(p)
}

// Insert places File(object) at p. It fails with ErrInvalidFilename if p
// is the root, and requires p's parent to already exist.
func (n *Node) Insert(p kpath.Path, object objstore.Pointer) (*Node, error) {
	parent, name := p.Split()
	if name == "" {
		return nil, errors.Wrapf(ErrInvalidFilename, "%s", p)
	}
	parentNode, err := n.Traverse(parent)
	if err != nil {
		return nil, err
	}
	if parentNode == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s", parent)
	}
	return n.replace(parent.Parts(), func(dir *Node) (*Node, error) {
		return dir.withChild(name, NewFile(object))
	})
}

// Delete replaces the node at p with a tombstone stamped with the
// current time. It fails with ErrNotFound if p does not currently
// resolve to a live node.
func (n *Node) Delete(p kpath.Path) (*Node, error) {
	if p.IsRoot() {
		return nil, errors.Wrapf(ErrInvalidFilename, "%s", p)
	}
	existing, err := n.Traverse(p)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.IsTombstone() {
		return nil, errors.Wrapf(ErrNotFound, "%s", p)
	}
	parent, name := p.Split()
	ts := now()
	return n.replace(parent.Parts(), func(dir *Node) (*Node, error) {
		return dir.withChild(name, newTombstone(ts))
	})
}
