package syncclient

import (
	"testing"
	"time"

	"github.com/ksyncdev/ksync/internal/ksynctree"
	"github.com/ksyncdev/ksync/internal/objstore"
	"github.com/stretchr/testify/assert"
)

func liveFile(obj objstore.Pointer, ts time.Time) *ksynctree.Node {
	return &ksynctree.Node{Kind: ksynctree.KindFile, Object: obj, Timestamp: ts.UnixNano()}
}

func tombstone(ts time.Time) *ksynctree.Node {
	return &ksynctree.Node{Kind: ksynctree.KindTombstone, Timestamp: ts.UnixNano()}
}

func TestDecideAbsentRemote(t *testing.T) {
	now := time.Now()
	assert.Equal(t, decisionNoop, decide(false, [32]byte{}, now, nil))
	assert.Equal(t, decisionUpload, decide(true, [32]byte{1}, now, nil))
}

func TestDecideTombstoneRemote(t *testing.T) {
	now := time.Now()
	ts := tombstone(now)
	assert.Equal(t, decisionNoop, decide(false, [32]byte{}, now, ts))
	assert.Equal(t, decisionDeleteLocal, decide(true, [32]byte{1}, now, ts))
}

func TestDecideLiveRemoteAbsentLocal(t *testing.T) {
	now := time.Now()
	remote := liveFile(objstore.Pointer{1}, now)
	assert.Equal(t, decisionFetch, decide(false, [32]byte{}, now, remote))
}

func TestDecideLiveRemoteHashMatch(t *testing.T) {
	now := time.Now()
	hash := objstore.Pointer{9, 9, 9}
	remote := liveFile(hash, now)
	assert.Equal(t, decisionNoop, decide(true, [32]byte(hash), now.Add(time.Hour), remote))
}

func TestDecideLiveRemoteLocalNewerUploads(t *testing.T) {
	remoteTime := time.Now()
	remote := liveFile(objstore.Pointer{1}, remoteTime)
	localTime := remoteTime.Add(time.Minute)
	assert.Equal(t, decisionUpload, decide(true, [32]byte{2}, localTime, remote))
}

func TestDecideLiveRemoteTieBreakFetches(t *testing.T) {
	remoteTime := time.Now()
	remote := liveFile(objstore.Pointer{1}, remoteTime)
	// Equal timestamps: server wins.
	assert.Equal(t, decisionFetch, decide(true, [32]byte{2}, remoteTime, remote))
	// Local older than remote: server wins.
	assert.Equal(t, decisionFetch, decide(true, [32]byte{2}, remoteTime.Add(-time.Minute), remote))
}

func TestClassifyRemoteDir(t *testing.T) {
	assert.Equal(t, remoteAbsent, classifyRemote(ksynctree.NewDir()))
	assert.Equal(t, remoteAbsent, classifyRemote(nil))
}
