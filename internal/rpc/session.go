// Package rpc implements the stateful RPC dispatch layer: the
// per-connection authentication state machine and the method table it
// exposes at each state, composing files.Files with the ksyncproto wire
// schemas.
package rpc

import (
	"errors"
	"fmt"

	"github.com/ksyncdev/ksync/internal/files"
	"github.com/ksyncdev/ksync/internal/ksyncproto"
	"github.com/ksyncdev/ksync/internal/roots"
)

// defaultClientSlot is the single trusted-client name used by the
// CONFIGURE/IDENTIFY bootstrap handshake. IDENTIFY verifies the
// presented key against this slot only; keys trusted under any other
// name are recorded in the keyring but are not accepted by IDENTIFY.
const defaultClientSlot = "client"

// authState tags which phase of the CONFIGURE/IDENTIFY handshake a
// session is in, and therefore which methods are currently registered.
type authState uint8

const (
	stateUnconfigured authState = iota
	stateAwaitingIdentify
	stateAuthorized
)

// ErrUnknownMethod is returned when a frame names a method not
// currently registered for the session's state.
var ErrUnknownMethod = errors.New("rpc: unknown method for current session state")

// ErrInvalidData is returned by IDENTIFY when the presented key does
// not verify as a trusted client, matching the wire protocol's
// InvalidData failure mode.
var ErrInvalidData = errors.New("rpc: invalid data")

// Handler processes one decoded request against files and the session,
// returning the encoded reply.
type Handler func(s *Session, f *files.Files, data []byte) ([]byte, error)

// Session is per-connection dispatch state: which methods are
// currently reachable, and the peer's address for logging.
type Session struct {
	Peer    string
	state   authState
	methods map[string]Handler
}

// NewSession returns a session in the state appropriate for whether the
// store has ever been configured: CONFIGURE only if not, IDENTIFY only
// if so.
func NewSession(peer string, f *files.Files) (*Session, error) {
	configured, err := f.IsConfigured()
	if err != nil {
		return nil, err
	}
	s := &Session{Peer: peer}
	if configured {
		s.transitionTo(stateAwaitingIdentify)
	} else {
		s.transitionTo(stateUnconfigured)
	}
	return s, nil
}

func (s *Session) transitionTo(state authState) {
	s.state = state
	switch state {
	case stateUnconfigured:
		s.methods = map[string]Handler{ksyncproto.MethodConfigure: handleConfigure}
	case stateAwaitingIdentify:
		s.methods = map[string]Handler{ksyncproto.MethodIdentify: handleIdentify}
	case stateAuthorized:
		s.methods = map[string]Handler{
			ksyncproto.MethodGet:        handleGet,
			ksyncproto.MethodInsert:     handleInsert,
			ksyncproto.MethodDelete:     handleDelete,
			ksyncproto.MethodClear:      handleClear,
			ksyncproto.MethodRollback:   handleRollback,
			ksyncproto.MethodGetNode:    handleGetNode,
			ksyncproto.MethodGetHistory: handleGetHistory,
		}
	}
}

// Dispatch looks up frame's method in the session's current table and
// invokes it, returning the response frame's method name (OK or ERR)
// and payload. A decode/handler failure never terminates the session;
// only the caller's frame I/O errors do that.
func Dispatch(s *Session, f *files.Files, frame ksyncproto.Frame) ksyncproto.Frame {
	handler, ok := s.methods[frame.Method]
	if !ok {
		return errFrame(fmt.Errorf("%s: %w", frame.Method, ErrUnknownMethod))
	}
	reply, err := handler(s, f, frame.Data)
	if err != nil {
		return errFrame(err)
	}
	return ksyncproto.Frame{Method: ksyncproto.MethodOK, Data: reply}
}

func errFrame(err error) ksyncproto.Frame {
	return ksyncproto.Frame{Method: ksyncproto.MethodErr, Data: []byte(err.Error())}
}

func handleConfigure(s *Session, f *files.Files, data []byte) ([]byte, error) {
	args, err := ksyncproto.DecodeConfigureArgs(data)
	if err != nil {
		return nil, err
	}
	if err := f.SetAdmin(args.Admin); err != nil {
		return nil, err
	}
	if err := f.SetServer(args.Server); err != nil {
		return nil, err
	}
	if err := f.TrustClient(defaultClientSlot, args.Client, args.Server); err != nil {
		return nil, err
	}
	s.transitionTo(stateAwaitingIdentify)
	return nil, nil
}

func handleIdentify(s *Session, f *files.Files, data []byte) ([]byte, error) {
	presented, err := ksyncproto.DecodeIdentifyArgs(data)
	if err != nil {
		return nil, err
	}
	server, err := f.GetServer()
	if err != nil {
		return nil, err
	}
	ok, err := f.VerifyClient(defaultClientSlot, presented, server)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.Peer, ErrInvalidData)
	}
	s.transitionTo(stateAuthorized)
	return nil, nil
}

func handleGet(_ *Session, f *files.Files, data []byte) ([]byte, error) {
	p, err := ksyncproto.DecodeGetArgs(data)
	if err != nil {
		return nil, err
	}
	content, err := f.Get(p, roots.Latest(0))
	if err != nil {
		return nil, err
	}
	return ksyncproto.EncodeGetReply(content), nil
}

func handleInsert(_ *Session, f *files.Files, data []byte) ([]byte, error) {
	args, err := ksyncproto.DecodeInsertArgs(data)
	if err != nil {
		return nil, err
	}
	_, err = f.Insert(args.Path, args.Content)
	return nil, err
}

func handleDelete(_ *Session, f *files.Files, data []byte) ([]byte, error) {
	p, err := ksyncproto.DecodeDeleteArgs(data)
	if err != nil {
		return nil, err
	}
	return nil, f.Delete(p)
}

func handleClear(_ *Session, f *files.Files, _ []byte) ([]byte, error) {
	return nil, f.Clear()
}

func handleRollback(_ *Session, f *files.Files, data []byte) ([]byte, error) {
	sel, err := ksyncproto.DecodeRollbackArgs(data)
	if err != nil {
		return nil, err
	}
	return nil, f.Rollback(sel)
}

func handleGetNode(_ *Session, f *files.Files, data []byte) ([]byte, error) {
	args, err := ksyncproto.DecodeGetNodeArgs(data)
	if err != nil {
		return nil, err
	}
	node, err := f.GetNode(args.Path, args.Selector)
	if err != nil {
		return nil, err
	}
	return ksyncproto.EncodeGetNodeReply(node), nil
}

func handleGetHistory(_ *Session, f *files.Files, _ []byte) ([]byte, error) {
	history, err := f.GetHistory()
	if err != nil {
		return nil, err
	}
	return ksyncproto.EncodeGetHistoryReply(history), nil
}
