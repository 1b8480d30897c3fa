package syncclient

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/ksynctree"
)

// decision is the outcome of comparing one path's local and remote
// state.
type decision uint8

const (
	decisionNoop decision = iota
	decisionFetch
	decisionUpload
	decisionDeleteLocal
)

// remoteStatus is what a remote tree says about one path, collapsed to
// the three cases the reconciliation table distinguishes.
type remoteStatus uint8

const (
	remoteAbsent remoteStatus = iota
	remoteTombstone
	remoteLive
)

func classifyRemote(n *ksynctree.Node) remoteStatus {
	switch {
	case n == nil || n.IsDir():
		return remoteAbsent
	case n.IsTombstone():
		return remoteTombstone
	default:
		return remoteLive
	}
}

// decide implements the per-file reconciliation table: absent/live/
// tombstone on the remote side crossed with local existence and, when
// both sides have live content, a hash comparison with a server-biased
// tie-break on mtime.
func decide(localExists bool, localHash [32]byte, localModTime time.Time, remote *ksynctree.Node) decision {
	switch classifyRemote(remote) {
	case remoteAbsent:
		if localExists {
			return decisionUpload
		}
		return decisionNoop
	case remoteTombstone:
		if localExists {
			return decisionDeleteLocal
		}
		return decisionNoop
	default: // remoteLive
		if !localExists {
			return decisionFetch
		}
		if localHash == remote.Object {
			return decisionNoop
		}
		remoteTime := time.Unix(0, remote.Timestamp)
		if localModTime.After(remoteTime) {
			return decisionUpload
		}
		return decisionFetch
	}
}

// localState reports whether path exists locally and, if so, its
// content hash and mtime.
func localState(path string) (exists bool, hash [32]byte, modTime time.Time, err error) {
	info, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		return false, hash, time.Time{}, nil
	}
	if statErr != nil {
		return false, hash, time.Time{}, statErr
	}
	if info.IsDir() {
		return false, hash, time.Time{}, nil
	}
	hash, err = hashFile(path)
	if err != nil {
		return false, hash, time.Time{}, err
	}
	return true, hash, info.ModTime(), nil
}

// reconcilePath applies decide's verdict for one remote path against
// the local filesystem.
func (c *Client) reconcilePath(p kpath.Path, remote *ksynctree.Node) error {
	local := c.toLocalPath(p)
	exists, hash, modTime, err := localState(local)
	if err != nil {
		return err
	}
	switch decide(exists, hash, modTime, remote) {
	case decisionFetch:
		return c.fetch(p)
	case decisionUpload:
		return c.upload(p)
	case decisionDeleteLocal:
		return c.deleteLocal(p)
	default:
		return nil
	}
}

// resyncAll fetches a fresh snapshot of the remote tree and reconciles
// every path it names together with every regular file found locally,
// covering both remote-initiated changes (new files, deletions) and
// local files the remote has never seen.
func (c *Client) resyncAll() error {
	root, err := c.remoteRoot()
	if err != nil {
		return err
	}
	c.remote = root

	seen := map[kpath.Path]bool{}
	if root != nil {
		if err := root.Walk(func(p kpath.Path, node *ksynctree.Node) error {
			if node.IsDir() {
				return nil
			}
			seen[p] = true
			return c.reconcilePath(p, node)
		}); err != nil {
			return err
		}
	}

	return filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		p, err := c.toRemotePath(path)
		if err != nil {
			return err
		}
		if seen[p] {
			return nil
		}
		return c.reconcilePath(p, nil)
	})
}

// handleNotify acts on a single local write event: if the new content
// differs from what the cached remote listing says the server has, it
// is uploaded immediately rather than waiting for the next resync.
func (c *Client) handleNotify(localPath string) error {
	info, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	p, err := c.toRemotePath(localPath)
	if err != nil {
		return err
	}
	hash, err := hashFile(localPath)
	if err != nil {
		return err
	}
	var remote *ksynctree.Node
	if c.remote != nil {
		remote, _ = c.remote.Traverse(p)
	}
	if remote != nil && !remote.IsDir() && !remote.IsTombstone() && remote.Object == hash {
		return nil
	}
	return c.upload(p)
}
