package ksyncproto

import (
	"testing"

	"github.com/ksyncdev/ksync/internal/keyring"
	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/ksynctree"
	"github.com/ksyncdev/ksync/internal/objstore"
	"github.com/ksyncdev/ksync/internal/roots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetArgsRoundTrip(t *testing.T) {
	p := kpath.MustNew("/a/b.txt")
	data := EncodeGetArgs(p)
	decoded, err := DecodeGetArgs(data)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestInsertArgsRoundTrip(t *testing.T) {
	a := InsertArgs{Path: kpath.MustNew("/x"), Content: []byte("hello")}
	data := EncodeInsertArgs(a)
	decoded, err := DecodeInsertArgs(data)
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
}

func TestGetNodeRoundTrip(t *testing.T) {
	obj := objstore.PointerTo([]byte("x"))
	n := ksynctree.NewFile(obj)

	data := EncodeGetNodeReply(n)
	decoded, err := DecodeGetNodeReply(data)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, n.Kind, decoded.Kind)
	assert.Equal(t, n.Object, decoded.Object)

	nilData := EncodeGetNodeReply(nil)
	decodedNil, err := DecodeGetNodeReply(nilData)
	require.NoError(t, err)
	assert.Nil(t, decodedNil)
}

func TestConfigureArgsRoundTrip(t *testing.T) {
	admin, err := keyring.GenerateKeyPair("admin")
	require.NoError(t, err)
	server, err := keyring.GenerateKeyPair("server")
	require.NoError(t, err)
	client, err := keyring.GenerateKeyPair("client")
	require.NoError(t, err)

	a := ConfigureArgs{Admin: admin, Server: server, Client: client}
	data := EncodeConfigureArgs(a)
	decoded, err := DecodeConfigureArgs(data)
	require.NoError(t, err)
	assert.True(t, admin.Equal(decoded.Admin))
	assert.True(t, server.Equal(decoded.Server))
	assert.True(t, client.Equal(decoded.Client))
}

func TestRollbackArgsRoundTrip(t *testing.T) {
	sel := roots.Latest(2)
	data := EncodeRollbackArgs(sel)
	decoded, err := DecodeRollbackArgs(data)
	require.NoError(t, err)
	assert.Equal(t, sel, decoded)
}

func TestGetHistoryReplyRoundTrip(t *testing.T) {
	history := []roots.Entry{
		{Timestamp: 1, Object: objstore.PointerTo([]byte("a"))},
		{Timestamp: 2, Object: objstore.PointerTo([]byte("b"))},
	}
	data := EncodeGetHistoryReply(history)
	decoded, err := DecodeGetHistoryReply(data)
	require.NoError(t, err)
	assert.Equal(t, history, decoded)
}
