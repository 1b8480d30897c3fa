package ksynctree

import (
	"testing"

	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/objstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPath(t *testing.T, s string) kpath.Path {
	t.Helper()
	p, err := kpath.New(s)
	require.NoError(t, err)
	return p
}

func TestInsertAndTraverse(t *testing.T) {
	root := NewDir()
	obj := objstore.PointerTo([]byte("hello"))

	root, err := root.MakeDirRecursive(mustPath(t, "/a/b"))
	require.NoError(t, err)

	root, err = root.Insert(mustPath(t, "/a/b/c.txt"), obj)
	require.NoError(t, err)

	got, err := root.Traverse(mustPath(t, "/a/b/c.txt"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, KindFile, got.Kind)
	assert.Equal(t, obj, got.Object)
}

func TestInsertRequiresParent(t *testing.T) {
	root := NewDir()
	obj := objstore.PointerTo([]byte("x"))
	_, err := root.Insert(mustPath(t, "/a/b.txt"), obj)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertRootIsInvalid(t *testing.T) {
	root := NewDir()
	obj := objstore.PointerTo([]byte("x"))
	_, err := root.Insert(kpath.Root, obj)
	assert.ErrorIs(t, err, ErrInvalidFilename)
}

func TestDeleteThenGet(t *testing.T) {
	root := NewDir()
	obj := objstore.PointerTo([]byte("1"))
	root, err := root.Insert(mustPath(t, "/x"), obj)
	require.NoError(t, err)

	root, err = root.Delete(mustPath(t, "/x"))
	require.NoError(t, err)

	node, err := root.Traverse(mustPath(t, "/x"))
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.True(t, node.IsTombstone())

	// Deleting again fails: it's already a tombstone, not a live node.
	_, err = root.Delete(mustPath(t, "/x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMakeDirNoOpOnExistingChild(t *testing.T) {
	root := NewDir()
	obj := objstore.PointerTo([]byte("1"))
	root, err := root.Insert(mustPath(t, "/x"), obj)
	require.NoError(t, err)

	// x already exists as a file; make_dir silently no-ops rather than
	// erroring or overwriting, per the preserved open question.
	again, err := root.MakeDir(mustPath(t, "/x"))
	require.NoError(t, err)
	node, err := again.Traverse(mustPath(t, "/x"))
	require.NoError(t, err)
	assert.Equal(t, KindFile, node.Kind)
}

func TestFileListSkipsTombstonesAndDirs(t *testing.T) {
	root := NewDir()
	obj := objstore.PointerTo([]byte("1"))
	root, err := root.MakeDirRecursive(mustPath(t, "/d"))
	require.NoError(t, err)
	root, err = root.Insert(mustPath(t, "/d/a.txt"), obj)
	require.NoError(t, err)
	root, err = root.Insert(mustPath(t, "/d/b.txt"), obj)
	require.NoError(t, err)
	root, err = root.Delete(mustPath(t, "/d/b.txt"))
	require.NoError(t, err)

	entries, err := root.FileList()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, mustPath(t, "/d/a.txt"), entries[0].Path)
}

func TestWalkIncludesTombstonesAndDirs(t *testing.T) {
	root := NewDir()
	obj := objstore.PointerTo([]byte("1"))
	root, err := root.Insert(mustPath(t, "/x"), obj)
	require.NoError(t, err)
	root, err = root.Delete(mustPath(t, "/x"))
	require.NoError(t, err)

	var kinds []Kind
	err = root.Walk(func(p kpath.Path, n *Node) error {
		kinds = append(kinds, n.Kind)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, kinds, KindTombstone)
	assert.Contains(t, kinds, KindDir)
}

func TestMergeRestoresOldRecordsNewDeletions(t *testing.T) {
	old := NewDir()
	objF := objstore.PointerTo([]byte("f"))
	old, err := old.Insert(mustPath(t, "/f"), objF)
	require.NoError(t, err)

	objG := objstore.PointerTo([]byte("g"))
	latest, err := old.Insert(mustPath(t, "/g"), objG)
	require.NoError(t, err)

	merged, err := old.Merge(latest)
	require.NoError(t, err)

	// /f was a live file in old (self) and is untouched by merge.
	fNode, err := merged.Traverse(mustPath(t, "/f"))
	require.NoError(t, err)
	require.NotNil(t, fNode)
	assert.Equal(t, KindFile, fNode.Kind)

	// /g only exists in latest (other), so merge records it as a
	// tombstone rather than carrying it into the restored snapshot.
	gNode, err := merged.Traverse(mustPath(t, "/g"))
	require.NoError(t, err)
	require.NotNil(t, gNode)
	assert.True(t, gNode.IsTombstone())
}

func TestPathInvariants(t *testing.T) {
	_, err := kpath.New("relative")
	assert.ErrorIs(t, err, kpath.ErrInvalid)

	_, err = kpath.New("/trailing/")
	assert.ErrorIs(t, err, kpath.ErrInvalid)

	_, err = kpath.New("//double")
	assert.ErrorIs(t, err, kpath.ErrInvalid)

	p, err := kpath.New("/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, p.Parts())
	parent, name := p.Split()
	assert.Equal(t, kpath.Path("/a/b"), parent)
	assert.Equal(t, "c", name)
	assert.Equal(t, []kpath.Path{"/a", "/a/b"}, p.Ancestors())
}
