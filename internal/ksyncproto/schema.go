package ksyncproto

import (
	"github.com/ksyncdev/ksync/internal/codec"
	"github.com/ksyncdev/ksync/internal/keyring"
	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/ksynctree"
	"github.com/ksyncdev/ksync/internal/objstore"
	"github.com/ksyncdev/ksync/internal/roots"
	"github.com/ksyncdev/ksync/internal/treecodec"
)

// Method names, matching the table every session's dispatch table is
// built from.
const (
	MethodConfigure  = "CONFIGURE"
	MethodIdentify   = "IDENTIFY"
	MethodGet        = "GET"
	MethodInsert     = "INSERT"
	MethodDelete     = "DELETE"
	MethodClear      = "CLEAR"
	MethodRollback   = "ROLLBACK"
	MethodGetNode    = "GET_NODE"
	MethodGetHistory = "GET_HISTORY"
)

func writePath(w *codec.Writer, p kpath.Path) {
	w.PutString(string(p))
}

func readPath(r *codec.Reader) (kpath.Path, error) {
	s := r.String()
	if err := r.Err(); err != nil {
		return "", err
	}
	return kpath.New(s)
}

// ConfigureArgs is CONFIGURE's request payload: the bootstrap trust
// chain in one shot.
type ConfigureArgs struct {
	Admin  *keyring.Key
	Server *keyring.Key
	Client *keyring.Key
}

func EncodeConfigureArgs(a ConfigureArgs) []byte {
	w := codec.NewWriter()
	keyring.WriteKey(w, a.Admin)
	keyring.WriteKey(w, a.Server)
	keyring.WriteKey(w, a.Client)
	return w.Bytes()
}

func DecodeConfigureArgs(data []byte) (ConfigureArgs, error) {
	r := codec.NewReader(data)
	admin, err := keyring.ReadKey(r)
	if err != nil {
		return ConfigureArgs{}, err
	}
	server, err := keyring.ReadKey(r)
	if err != nil {
		return ConfigureArgs{}, err
	}
	client, err := keyring.ReadKey(r)
	if err != nil {
		return ConfigureArgs{}, err
	}
	return ConfigureArgs{Admin: admin, Server: server, Client: client}, nil
}

// EncodeIdentifyArgs and DecodeIdentifyArgs carry IDENTIFY's single Key
// argument.
func EncodeIdentifyArgs(k *keyring.Key) []byte {
	return keyring.Encode(k)
}

func DecodeIdentifyArgs(data []byte) (*keyring.Key, error) {
	return keyring.Decode(data)
}

// EncodeGetArgs and DecodeGetArgs carry GET's single Path argument.
func EncodeGetArgs(p kpath.Path) []byte {
	w := codec.NewWriter()
	writePath(w, p)
	return w.Bytes()
}

func DecodeGetArgs(data []byte) (kpath.Path, error) {
	r := codec.NewReader(data)
	return readPath(r)
}

// EncodeGetReply and DecodeGetReply carry GET's byte-content reply.
func EncodeGetReply(content []byte) []byte {
	w := codec.NewWriter()
	w.PutBytes(content)
	return w.Bytes()
}

func DecodeGetReply(data []byte) ([]byte, error) {
	r := codec.NewReader(data)
	content := r.Bytes()
	return content, r.Err()
}

// InsertArgs is INSERT's request payload.
type InsertArgs struct {
	Path    kpath.Path
	Content []byte
}

func EncodeInsertArgs(a InsertArgs) []byte {
	w := codec.NewWriter()
	writePath(w, a.Path)
	w.PutBytes(a.Content)
	return w.Bytes()
}

func DecodeInsertArgs(data []byte) (InsertArgs, error) {
	r := codec.NewReader(data)
	p, err := readPath(r)
	if err != nil {
		return InsertArgs{}, err
	}
	content := r.Bytes()
	if err := r.Err(); err != nil {
		return InsertArgs{}, err
	}
	return InsertArgs{Path: p, Content: content}, nil
}

// EncodeDeleteArgs and DecodeDeleteArgs carry DELETE's single Path
// argument.
func EncodeDeleteArgs(p kpath.Path) []byte {
	return EncodeGetArgs(p)
}

func DecodeDeleteArgs(data []byte) (kpath.Path, error) {
	return DecodeGetArgs(data)
}

// EncodeRollbackArgs and DecodeRollbackArgs carry ROLLBACK's selector
// argument.
func EncodeRollbackArgs(sel roots.Selector) []byte {
	return roots.EncodeSelector(sel)
}

func DecodeRollbackArgs(data []byte) (roots.Selector, error) {
	return roots.DecodeSelector(data)
}

// GetNodeArgs is GET_NODE's request payload.
type GetNodeArgs struct {
	Path     kpath.Path
	Selector roots.Selector
}

func EncodeGetNodeArgs(a GetNodeArgs) []byte {
	w := codec.NewWriter()
	writePath(w, a.Path)
	roots.WriteSelector(w, a.Selector)
	return w.Bytes()
}

func DecodeGetNodeArgs(data []byte) (GetNodeArgs, error) {
	r := codec.NewReader(data)
	p, err := readPath(r)
	if err != nil {
		return GetNodeArgs{}, err
	}
	sel, err := roots.ReadSelector(r)
	if err != nil {
		return GetNodeArgs{}, err
	}
	return GetNodeArgs{Path: p, Selector: sel}, nil
}

// EncodeGetNodeReply and DecodeGetNodeReply carry GET_NODE's result.
// A nil node (path not found) is represented by a leading boolean
// presence flag.
func EncodeGetNodeReply(n *ksynctree.Node) []byte {
	w := codec.NewWriter()
	if n == nil {
		w.PutUint8(0)
		return w.Bytes()
	}
	w.PutUint8(1)
	if err := treecodec.WriteNode(w, n); err != nil {
		panic(err)
	}
	return w.Bytes()
}

func DecodeGetNodeReply(data []byte) (*ksynctree.Node, error) {
	r := codec.NewReader(data)
	present := r.Uint8()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	return treecodec.ReadNode(r)
}

// EncodeGetHistoryReply and DecodeGetHistoryReply carry GET_HISTORY's
// reply.
func EncodeGetHistoryReply(history []roots.Entry) []byte {
	w := codec.NewWriter()
	roots.WriteEntries(w, history)
	return w.Bytes()
}

func DecodeGetHistoryReply(data []byte) ([]roots.Entry, error) {
	r := codec.NewReader(data)
	history, err := roots.ReadEntries(r)
	if err != nil {
		return nil, err
	}
	return history, nil
}

// EncodeObjectPointer and DecodeObjectPointer carry a bare Object
// pointer as a length-prefixed 32-byte sequence. INSERT's reply is
// empty and does not use them.
func EncodeObjectPointer(p objstore.Pointer) []byte {
	w := codec.NewWriter()
	w.PutBytes(p[:])
	return w.Bytes()
}

func DecodeObjectPointer(data []byte) (objstore.Pointer, error) {
	r := codec.NewReader(data)
	raw := r.Bytes()
	if err := r.Err(); err != nil {
		return objstore.Pointer{}, err
	}
	return objstore.PointerFromBytes(raw)
}
