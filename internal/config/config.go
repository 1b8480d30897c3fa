package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// DefaultBaseDirectoryPath is where ksync commands store their
// database and keys by default. It is $KSYNC_BASE if set, else
// $HOME/lib/ksync. Commands may override it via a flag.
var DefaultBaseDirectoryPath string

func init() {
	if base := os.Getenv("KSYNC_BASE"); base != "" {
		DefaultBaseDirectoryPath = base
	} else {
		DefaultBaseDirectoryPath = os.ExpandEnv("$HOME/lib/ksync")
	}
}

// ServerConfig configures the daemon's listener and database path.
type ServerConfig struct {
	Addr string
	DB   string
}

// SyncConfig configures the bidirectional sync client.
type SyncConfig struct {
	Remote     string
	PointDir   string
	ResyncTime int
	Key        string
}

// ClientConfig configures the one-shot batch RPC CLI mode.
type ClientConfig struct {
	Remote string
	Key    string
}

// C is the full, parsed configuration. Any section is zero-valued if
// absent from the file; callers decide whether that's fatal for the
// command they're running.
type C struct {
	Server ServerConfig
	Sync   SyncConfig
	Client ClientConfig
}

// Load parses the ini-format configuration file at path.
func Load(path string) (*C, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	c := &C{}

	server := f.Section("server")
	c.Server.Addr = server.Key("addr").String()
	c.Server.DB = server.Key("db").String()

	sync := f.Section("sync")
	c.Sync.Remote = sync.Key("remote").String()
	c.Sync.PointDir = sync.Key("point.dir").String()
	c.Sync.ResyncTime = sync.Key("resync_time").MustInt(300)
	c.Sync.Key = sync.Key("key").String()

	client := f.Section("client")
	c.Client.Remote = client.Key("remote").String()
	c.Client.Key = client.Key("key").String()

	return c, nil
}
