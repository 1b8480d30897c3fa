// Package syncclient implements the bidirectional sync loop: a local
// directory watcher plus a periodic resync timer, reconciling a local
// directory tree against the root "/" of a remote ksync server's fs
// tree.
package syncclient

import (
	"bufio"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ksyncdev/ksync/internal/keyring"
	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/ksyncproto"
	"github.com/ksyncdev/ksync/internal/ksynctree"
	"github.com/ksyncdev/ksync/internal/roots"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EventKind discriminates the two sources feeding the client's single
// consumer loop.
type EventKind uint8

const (
	EventNotify EventKind = iota
	EventResync
)

// Event is one entry in the client's inbound queue.
type Event struct {
	Kind EventKind
	Path string // only meaningful for EventNotify
}

// Client owns one connection to a remote server and converges a local
// directory against it.
type Client struct {
	conn    net.Conn
	rw      *bufio.ReadWriter
	dir     string
	resync  time.Duration
	key     *keyring.Key
	events  chan Event
	log     *logrus.Logger
	remote  *ksynctree.Node // last fetched snapshot of "/", used by handleNotify
}

// Connect dials remoteAddr, loads the client key at keyPath, and issues
// IDENTIFY. The returned Client is ready for Run.
func Connect(remoteAddr, keyPath, dir string, resync time.Duration, log *logrus.Logger) (*Client, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	conn, err := net.Dial("tcp", remoteAddr)
	if err != nil {
		return nil, err
	}
	keyDir, keyName := filepath.Split(keyPath)
	keyName = strings.TrimSuffix(strings.TrimSuffix(keyName, ".key"), ".pub")
	key, err := keyring.LoadFromFile(strings.TrimSuffix(keyDir, "/"), keyName)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c := &Client{
		conn:   conn,
		rw:     bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		dir:    dir,
		resync: resync,
		key:    key,
		events: make(chan Event, 1024),
		log:    log,
	}
	if err := c.identify(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) identify() error {
	return c.call(ksyncproto.MethodIdentify, ksyncproto.EncodeIdentifyArgs(c.key.PublicOnly()), nil)
}

func (c *Client) call(method string, args []byte, decodeReply func([]byte) error) error {
	if err := ksyncproto.WriteFrame(c.rw, ksyncproto.Frame{Method: method, Data: args}); err != nil {
		return err
	}
	if err := c.rw.Flush(); err != nil {
		return err
	}
	resp, err := ksyncproto.ReadFrame(c.rw)
	if err != nil {
		return err
	}
	if resp.Method == ksyncproto.MethodErr {
		return errors.New(string(resp.Data))
	}
	if decodeReply == nil {
		return nil
	}
	return decodeReply(resp.Data)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run starts the watcher, the resync timer, and the single consumer
// loop, blocking until ctx is canceled or a fatal error occurs.
func (c *Client) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := addRecursive(watcher, c.dir); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// Unblock any in-flight RPC read when the loop is told to stop.
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if ev.Op&fsnotify.Write == fsnotify.Write {
					select {
					case c.events <- Event{Kind: EventNotify, Path: ev.Name}:
					case <-ctx.Done():
						return nil
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				c.log.WithError(err).Warn("watcher error")
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(c.resync)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				select {
				case c.events <- Event{Kind: EventResync}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		c.events <- Event{Kind: EventResync}
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-c.events:
				if err := c.handle(ev); err != nil {
					c.log.WithError(err).Warn("reconciliation error")
				}
			}
		}
	})

	return g.Wait()
}

func (c *Client) handle(ev Event) error {
	switch ev.Kind {
	case EventResync:
		return c.resyncAll()
	case EventNotify:
		return c.handleNotify(ev.Path)
	default:
		return nil
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func hashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func (c *Client) toRemotePath(localPath string) (kpath.Path, error) {
	rel, err := filepath.Rel(c.dir, localPath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return kpath.Root, nil
	}
	return kpath.New("/" + filepath.ToSlash(rel))
}

func (c *Client) toLocalPath(p kpath.Path) string {
	return filepath.Join(c.dir, filepath.FromSlash(strings.TrimPrefix(string(p), "/")))
}

func (c *Client) remoteRoot() (*ksynctree.Node, error) {
	var node *ksynctree.Node
	err := c.call(ksyncproto.MethodGetNode, ksyncproto.EncodeGetNodeArgs(ksyncproto.GetNodeArgs{
		Path:     kpath.Root,
		Selector: roots.Latest(0),
	}), func(data []byte) error {
		n, err := ksyncproto.DecodeGetNodeReply(data)
		if err != nil {
			return err
		}
		node = n
		return nil
	})
	return node, err
}

func (c *Client) fetch(p kpath.Path) error {
	var content []byte
	err := c.call(ksyncproto.MethodGet, ksyncproto.EncodeGetArgs(p), func(data []byte) error {
		got, err := ksyncproto.DecodeGetReply(data)
		if err != nil {
			return err
		}
		content = got
		return nil
	})
	if err != nil {
		return err
	}
	local := c.toLocalPath(p)
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	return os.WriteFile(local, content, 0o644)
}

func (c *Client) upload(p kpath.Path) error {
	local := c.toLocalPath(p)
	content, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	return c.call(ksyncproto.MethodInsert, ksyncproto.EncodeInsertArgs(ksyncproto.InsertArgs{
		Path:    p,
		Content: content,
	}), nil)
}

func (c *Client) deleteLocal(p kpath.Path) error {
	local := c.toLocalPath(p)
	info, err := os.Stat(local)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(local)
	}
	return os.Remove(local)
}
