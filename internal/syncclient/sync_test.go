package syncclient

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ksyncdev/ksync/internal/files"
	"github.com/ksyncdev/ksync/internal/keyring"
	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/kv"
	"github.com/ksyncdev/ksync/internal/roots"
	"github.com/ksyncdev/ksync/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer brings up a configured daemon on a loopback listener and
// returns its address plus the path of a trusted client key on disk.
func startServer(t *testing.T, f *files.Files) (addr, keyPath string) {
	t.Helper()

	admin, err := keyring.GenerateKeyPair("admin")
	require.NoError(t, err)
	server, err := keyring.GenerateKeyPair("server")
	require.NoError(t, err)
	require.NoError(t, keyring.SignInPlace(admin, server))
	client, err := keyring.GenerateKeyPair("laptop")
	require.NoError(t, err)

	require.NoError(t, f.SetAdmin(admin))
	require.NoError(t, f.SetServer(server))
	require.NoError(t, f.TrustClient("client", client, server))

	keyBase := t.TempDir()
	require.NoError(t, keyring.SaveToFile(keyBase, "client", client))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := rpc.NewServer(f, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Serve(ctx, ln) }()

	return ln.Addr().String(), filepath.Join(keyBase, "client")
}

func TestResyncConverges(t *testing.T) {
	db, err := kv.Open(filepath.Join(t.TempDir(), "db"), kv.BucketObjects, kv.BucketRoots)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	f, err := files.New(db)
	require.NoError(t, err)

	// Remote: /d/a.txt is live, /d/b.txt is a tombstone.
	_, err = f.Insert(kpath.MustNew("/d/a.txt"), []byte("one"))
	require.NoError(t, err)
	_, err = f.Insert(kpath.MustNew("/d/b.txt"), []byte("stale"))
	require.NoError(t, err)
	require.NoError(t, f.Delete(kpath.MustNew("/d/b.txt")))

	addr, keyPath := startServer(t, f)

	// Local: /d/b.txt exists with old content, /d/a.txt is missing, and
	// /c.txt is a local-only file the server has never seen.
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "d"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d", "b.txt"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("local"), 0o644))

	c, err := Connect(addr, keyPath, dir, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.resyncAll())

	got, err := os.ReadFile(filepath.Join(dir, "d", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	_, err = os.Stat(filepath.Join(dir, "d", "b.txt"))
	assert.True(t, os.IsNotExist(err))

	// The local-only file was uploaded.
	remote, err := f.Get(kpath.MustNew("/c.txt"), roots.Latest(0))
	require.NoError(t, err)
	assert.Equal(t, "local", string(remote))
}
