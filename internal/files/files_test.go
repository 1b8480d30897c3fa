package files

import (
	"path/filepath"
	"testing"

	"github.com/ksyncdev/ksync/internal/keyring"
	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/kv"
	"github.com/ksyncdev/ksync/internal/roots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFiles(t *testing.T) *Files {
	t.Helper()
	db, err := kv.Open(filepath.Join(t.TempDir(), "db"), kv.BucketObjects, kv.BucketRoots)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	f, err := New(db)
	require.NoError(t, err)
	return f
}

func TestInsertAndGet(t *testing.T) {
	f := newTestFiles(t)
	p := kpath.MustNew("/a/b.txt")
	_, err := f.Insert(p, []byte("hello"))
	require.NoError(t, err)

	got, err := f.Get(p, roots.Latest(0))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestPutIsContentAddressedAndDeduplicated(t *testing.T) {
	f := newTestFiles(t)
	p1 := kpath.MustNew("/a")
	p2 := kpath.MustNew("/b")
	obj1, err := f.Insert(p1, []byte("same"))
	require.NoError(t, err)
	obj2, err := f.Insert(p2, []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, obj1, obj2)
}

func TestDeleteThenGetFails(t *testing.T) {
	f := newTestFiles(t)
	p := kpath.MustNew("/a")
	_, err := f.Insert(p, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Delete(p))

	_, err = f.Get(p, roots.Latest(0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRollbackRestoresOldContent(t *testing.T) {
	f := newTestFiles(t)
	p := kpath.MustNew("/a")
	_, err := f.Insert(p, []byte("v1"))
	require.NoError(t, err)

	history, err := f.GetHistory()
	require.NoError(t, err)
	require.Len(t, history, 2) // seed + first insert

	_, err = f.Insert(p, []byte("v2"))
	require.NoError(t, err)

	got, err := f.Get(p, roots.Latest(0))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	require.NoError(t, f.Rollback(roots.Latest(1)))

	got, err = f.Get(p, roots.Latest(0))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestGetAtOlderRevision(t *testing.T) {
	f := newTestFiles(t)
	p := kpath.MustNew("/a")
	_, err := f.Insert(p, []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, f.Delete(p))

	// Tombstoned at the latest revision, but still live one step back.
	_, err = f.Get(p, roots.Latest(0))
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.Get(p, roots.Latest(1))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestAdminServerClientTrustChain(t *testing.T) {
	f := newTestFiles(t)

	configured, err := f.IsConfigured()
	require.NoError(t, err)
	assert.False(t, configured)

	admin, err := keyring.GenerateKeyPair("admin")
	require.NoError(t, err)
	require.NoError(t, f.SetAdmin(admin))

	configured, err = f.IsConfigured()
	require.NoError(t, err)
	assert.True(t, configured)

	// Setting it again is rejected.
	assert.ErrorIs(t, f.SetAdmin(admin), ErrAlreadyConfigured)

	server, err := keyring.GenerateKeyPair("server")
	require.NoError(t, err)
	require.NoError(t, keyring.SignInPlace(admin, server))
	require.NoError(t, f.SetServer(server))

	client, err := keyring.GenerateKeyPair("laptop")
	require.NoError(t, err)
	require.NoError(t, f.TrustClient("laptop", client, server))

	ok, err := f.VerifyClient("laptop", client.PublicOnly(), server)
	require.NoError(t, err)
	assert.True(t, ok)

	impostor, err := keyring.GenerateKeyPair("impostor")
	require.NoError(t, err)
	ok, err = f.VerifyClient("laptop", impostor.PublicOnly(), server)
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := f.ListTrustedClients()
	require.NoError(t, err)
	assert.Contains(t, names, "laptop")
}

func TestClearResetsState(t *testing.T) {
	f := newTestFiles(t)
	p := kpath.MustNew("/a")
	_, err := f.Insert(p, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, f.Clear())

	_, err = f.Get(p, roots.Latest(0))
	assert.ErrorIs(t, err, ErrNotFound)

	configured, err := f.IsConfigured()
	require.NoError(t, err)
	assert.False(t, configured)
}
