// Package files composes the object store, the versioned tree, and the
// roots registry into the two trees the rest of the system operates on:
// "fs", the synchronized file tree, and "keyring", the trust chain
// tree holding the admin key, the server's own key, and the set of
// trusted client keys. Every mutation is copy-on-write and recorded as
// a new root history entry; nothing already committed is lost, except
// through Clear, which discards all objects and histories.
package files

import (
	"github.com/ksyncdev/ksync/internal/keyring"
	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/ksynctree"
	"github.com/ksyncdev/ksync/internal/kv"
	"github.com/ksyncdev/ksync/internal/objstore"
	"github.com/ksyncdev/ksync/internal/roots"
	"github.com/ksyncdev/ksync/internal/treecodec"
	"github.com/pkg/errors"
)

const (
	rootFS      = "fs"
	rootKeyring = "keyring"
)

var (
	// ErrNotFound is returned when a path does not resolve to a file.
	ErrNotFound = errors.New("files: not found")
	// ErrAuth is returned when a trust-chain operation fails to verify.
	ErrAuth = errors.New("files: authentication failed")
	// ErrAlreadyConfigured is returned when an attempt is made to set
	// the admin key a second time.
	ErrAlreadyConfigured = errors.New("files: already configured")
)

// Files is the top-level store: the file tree, the trust tree, and the
// blob store and root histories backing both.
type Files struct {
	db      *kv.DB
	objects *objstore.Store
	roots   *roots.Registry
}

// New opens a Files store over db, seeding the fs root with an empty
// tree and the keyring root with empty /self and /trusted directories
// if they do not already exist.
func New(db *kv.DB) (*Files, error) {
	f := &Files{
		db:      db,
		objects: objstore.New(db),
		roots:   roots.New(db),
	}
	if err := f.ensureRoots(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Files) ensureRoots() error {
	emptyFS, err := f.storeNode(ksynctree.NewDir())
	if err != nil {
		return err
	}
	if err := f.roots.Ensure(rootFS, emptyFS); err != nil {
		return err
	}

	kr := ksynctree.NewDir()
	kr, err = kr.MakeDir(kpath.MustNew("/self"))
	if err != nil {
		return err
	}
	kr, err = kr.MakeDir(kpath.MustNew("/trusted"))
	if err != nil {
		return err
	}
	krPtr, err := f.storeNode(kr)
	if err != nil {
		return err
	}
	return f.roots.Ensure(rootKeyring, krPtr)
}

func (f *Files) storeNode(n *ksynctree.Node) (objstore.Pointer, error) {
	return f.objects.Put(treecodec.Encode(n))
}

func (f *Files) loadNode(p objstore.Pointer) (*ksynctree.Node, error) {
	const method = "Files.loadNode"
	data, err := f.objects.Get(p)
	if err != nil {
		return nil, err
	}
	node, err := treecodec.Decode(data)
	if err != nil {
		return nil, errorf(method, "corrupt snapshot %v: %v", p, err)
	}
	return node, nil
}

// WithRoot resolves name's history at sel, loads the resulting tree,
// and invokes op with it. It does not write anything.
func (f *Files) WithRoot(name string, sel roots.Selector, op func(*ksynctree.Node) error) error {
	entry, err := f.roots.Resolve(name, sel)
	if err != nil {
		return err
	}
	node, err := f.loadNode(entry.Object)
	if err != nil {
		return err
	}
	return op(node)
}

// WithRootMut loads name's current tree, passes it to op, stores op's
// returned tree as a new object, and appends it to name's history.
func (f *Files) WithRootMut(name string, op func(*ksynctree.Node) (*ksynctree.Node, error)) error {
	entry, err := f.roots.Resolve(name, roots.Latest(0))
	if err != nil {
		return err
	}
	node, err := f.loadNode(entry.Object)
	if err != nil {
		return err
	}
	newNode, err := op(node)
	if err != nil {
		return err
	}
	ptr, err := f.storeNode(newNode)
	if err != nil {
		return err
	}
	return f.roots.Set(name, ptr)
}

// Insert stores content and binds it to p in the current fs tree.
func (f *Files) Insert(p kpath.Path, content []byte) (objstore.Pointer, error) {
	obj, err := f.objects.Put(content)
	if err != nil {
		return objstore.Pointer{}, err
	}
	err = f.WithRootMut(rootFS, func(n *ksynctree.Node) (*ksynctree.Node, error) {
		parent, _ := p.Split()
		n, err := n.MakeDirRecursive(parent)
		if err != nil {
			return nil, err
		}
		return n.Insert(p, obj)
	})
	if err != nil {
		return objstore.Pointer{}, err
	}
	return obj, nil
}

// Get returns the content bound to p in the fs tree as of sel.
func (f *Files) Get(p kpath.Path, sel roots.Selector) ([]byte, error) {
	var content []byte
	err := f.WithRoot(rootFS, sel, func(n *ksynctree.Node) error {
		node, err := n.Traverse(p)
		if err != nil {
			return err
		}
		if node == nil || node.Kind != ksynctree.KindFile {
			return errors.Wrapf(ErrNotFound, "%s", p)
		}
		var getErr error
		content, getErr = f.objects.Get(node.Object)
		return getErr
	})
	return content, err
}

// Delete tombstones p in the current fs tree.
func (f *Files) Delete(p kpath.Path) error {
	return f.WithRootMut(rootFS, func(n *ksynctree.Node) (*ksynctree.Node, error) {
		return n.Delete(p)
	})
}

// Clear discards every snapshot and history for both trees and
// re-seeds them as if freshly initialized.
func (f *Files) Clear() error {
	if err := f.db.ClearBucket(kv.BucketObjects); err != nil {
		return err
	}
	if err := f.db.ClearBucket(kv.BucketRoots); err != nil {
		return err
	}
	return f.ensureRoots()
}

// Rollback reverts the fs tree to the snapshot sel addresses, while
// recording as tombstones the file and tombstone paths of the current
// tree that are not live files in that snapshot. The result is
// appended as a new history entry, so a subsequent GetHistory shows the
// rollback rather than erasing the intervening history.
func (f *Files) Rollback(sel roots.Selector) error {
	target, err := f.roots.Resolve(rootFS, sel)
	if err != nil {
		return err
	}
	old, err := f.loadNode(target.Object)
	if err != nil {
		return err
	}
	return f.WithRootMut(rootFS, func(latest *ksynctree.Node) (*ksynctree.Node, error) {
		return old.Merge(latest)
	})
}

// GetNode returns the raw tree node at p as of sel, without resolving
// it to file content. Used by the GET_NODE RPC for diagnostics and by
// the sync client to enumerate the remote tree.
func (f *Files) GetNode(p kpath.Path, sel roots.Selector) (*ksynctree.Node, error) {
	var node *ksynctree.Node
	err := f.WithRoot(rootFS, sel, func(root *ksynctree.Node) error {
		n, err := root.Traverse(p)
		if err != nil {
			return err
		}
		node = n
		return nil
	})
	return node, err
}

// GetHistory returns the full recorded history of the fs root.
func (f *Files) GetHistory() ([]roots.Entry, error) {
	return f.roots.GetHistory(rootFS)
}

func (f *Files) putKeyringKey(p kpath.Path, k *keyring.Key) error {
	obj, err := f.objects.Put(keyring.Encode(k))
	if err != nil {
		return err
	}
	return f.WithRootMut(rootKeyring, func(n *ksynctree.Node) (*ksynctree.Node, error) {
		parent, _ := p.Split()
		n, err := n.MakeDirRecursive(parent)
		if err != nil {
			return nil, err
		}
		return n.Insert(p, obj)
	})
}

func (f *Files) getKeyringKey(p kpath.Path) (*keyring.Key, error) {
	var k *keyring.Key
	err := f.WithRoot(rootKeyring, roots.Latest(0), func(n *ksynctree.Node) error {
		node, err := n.Traverse(p)
		if err != nil {
			return err
		}
		if node == nil || node.Kind != ksynctree.KindFile {
			return errors.Wrapf(ErrNotFound, "%s", p)
		}
		data, err := f.objects.Get(node.Object)
		if err != nil {
			return err
		}
		decoded, err := keyring.Decode(data)
		if err != nil {
			return err
		}
		k = decoded
		return nil
	})
	return k, err
}

var (
	adminPath  = kpath.MustNew("/self/admin")
	serverPath = kpath.MustNew("/self/server")
)

// IsConfigured reports whether an admin key has been recorded.
func (f *Files) IsConfigured() (bool, error) {
	_, err := f.getKeyringKey(adminPath)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetAdmin records admin as the trust root, once. A second call fails
// with ErrAlreadyConfigured.
func (f *Files) SetAdmin(admin *keyring.Key) error {
	configured, err := f.IsConfigured()
	if err != nil {
		return err
	}
	if configured {
		return ErrAlreadyConfigured
	}
	return f.putKeyringKey(adminPath, admin.PublicOnly())
}

// GetAdmin returns the recorded admin key.
func (f *Files) GetAdmin() (*keyring.Key, error) {
	return f.getKeyringKey(adminPath)
}

// SetServer records server as this node's identity, verifying it was
// signed by the recorded admin key.
func (f *Files) SetServer(server *keyring.Key) error {
	admin, err := f.GetAdmin()
	if err != nil {
		return err
	}
	if !keyring.Verify(admin.Public, server) {
		return ErrAuth
	}
	return f.putKeyringKey(serverPath, server.PublicOnly())
}

// GetServer returns the recorded server key.
func (f *Files) GetServer() (*keyring.Key, error) {
	return f.getKeyringKey(serverPath)
}

func trustedPath(name string) kpath.Path {
	return kpath.MustNew("/trusted/" + name)
}

// TrustClient signs clientPub with the server's own key and records it
// under name, making it acceptable to a later VerifyClient call.
func (f *Files) TrustClient(name string, clientPub *keyring.Key, server *keyring.Key) error {
	subject := clientPub.PublicOnly()
	if err := keyring.SignInPlace(server, subject); err != nil {
		return err
	}
	return f.putKeyringKey(trustedPath(name), subject)
}

// VerifyClient reports whether presented matches the key trusted under
// name and whether its stored signature still verifies against server.
func (f *Files) VerifyClient(name string, presented *keyring.Key, server *keyring.Key) (bool, error) {
	trusted, err := f.getKeyringKey(trustedPath(name))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !trusted.Equal(presented) {
		return false, nil
	}
	return keyring.Verify(server.Public, trusted), nil
}

// ListTrustedClients returns the names of every client ever trusted.
func (f *Files) ListTrustedClients() ([]string, error) {
	var names []string
	err := f.WithRoot(rootKeyring, roots.Latest(0), func(n *ksynctree.Node) error {
		dir, err := n.Traverse(kpath.MustNew("/trusted"))
		if err != nil {
			return err
		}
		if dir == nil {
			return nil
		}
		entries, err := dir.FileList()
		if err != nil {
			return err
		}
		for _, e := range entries {
			_, name := e.Path.Split()
			names = append(names, name)
		}
		return nil
	})
	return names, err
}
