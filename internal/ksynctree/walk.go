package ksynctree

import (
	"sort"

	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/objstore"
)

// FileEntry describes one live file found by FileList.
type FileEntry struct {
	Path      kpath.Path
	Object    objstore.Pointer
	Timestamp int64
}

// Walk performs a depth-first traversal of every node reachable from n,
// including n itself, tombstones, and directories, invoking fn with each
// node's absolute path (relative to n being the root). This is the
// tree's iter() operation: unlike FileList, nothing is skipped.
func (n *Node) Walk(fn func(p kpath.Path, node *Node) error) error {
	return n.walk(kpath.Root, fn)
}

func (n *Node) walk(p kpath.Path, fn func(kpath.Path, *Node) error) error {
	if err := fn(p, n); err != nil {
		return err
	}
	if !n.IsDir() {
		return nil
	}
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := n.Children[name].walk(kpath.Join(p, name), fn); err != nil {
			return err
		}
	}
	return nil
}

// FileList returns every live file reachable from n, skipping tombstones
// and directories themselves. n must be a Dir.
func (n *Node) FileList() ([]FileEntry, error) {
	if !n.IsDir() {
		return nil, ErrNotADirectory
	}
	var out []FileEntry
	err := n.Walk(func(p kpath.Path, node *Node) error {
		if node.Kind == KindFile {
			out = append(out, FileEntry{Path: p, Object: node.Object, Timestamp: node.Timestamp})
		}
		return nil
	})
	return out, err
}

// Merge is used for rollback: it is invoked on an old snapshot with the
// current (latest) snapshot as other. For every file-or-tombstone path
// reachable from other that is NOT a live file in n, a tombstone is
// recorded at that path in the result, all stamped with one consistent
// timestamp; paths already a tombstone in n are simply re-stamped. The
// effect is a new snapshot semantically equivalent to "revert to n, but
// record as deletions the files that are not live in n." A file that is
// live in n keeps n's content, with no marker, even if other holds
// different content there.
func (n *Node) Merge(other *Node) (*Node, error) {
	ts := now()
	cur := n
	err := other.Walk(func(p kpath.Path, node *Node) error {
		if node.Kind != KindFile && node.Kind != KindTombstone {
			return nil
		}
		if p.IsRoot() {
			return nil
		}
		self, err := cur.Traverse(p)
		if err != nil {
			return err
		}
		if self != nil && self.Kind == KindFile {
			return nil
		}
		parent, name := p.Split()
		cur, err = cur.MakeDirRecursive(parent)
		if err != nil {
			return err
		}
		cur, err = cur.replace(parent.Parts(), func(dir *Node) (*Node, error) {
			return dir.withChild(name, newTombstone(ts))
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return cur, nil
}
