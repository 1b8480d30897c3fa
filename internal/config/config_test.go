package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesAllSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	contents := `
[server]
addr = 127.0.0.1:9000
db = /var/lib/ksync/db

[sync]
remote = 127.0.0.1:9000
point.dir = /home/user/synced
resync_time = 60
key = /home/user/.ksync/client.key

[client]
remote = 127.0.0.1:9000
key = /home/user/.ksync/client.key
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", c.Server.Addr)
	assert.Equal(t, "/var/lib/ksync/db", c.Server.DB)
	assert.Equal(t, 60, c.Sync.ResyncTime)
	assert.Equal(t, "/home/user/synced", c.Sync.PointDir)
	assert.Equal(t, "127.0.0.1:9000", c.Client.Remote)
}

func TestLoadDefaultsResyncTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("[sync]\nremote = 127.0.0.1:9000\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 300, c.Sync.ResyncTime)
}
