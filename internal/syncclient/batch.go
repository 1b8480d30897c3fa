package syncclient

import (
	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/ksyncproto"
	"github.com/ksyncdev/ksync/internal/roots"
)

// CallGet issues a single GET for p and returns its content. Used by
// the one-shot batch CLI mode, outside of the watch/reconcile loop.
func (c *Client) CallGet(p kpath.Path) ([]byte, error) {
	var content []byte
	err := c.call(ksyncproto.MethodGet, ksyncproto.EncodeGetArgs(p), func(data []byte) error {
		got, err := ksyncproto.DecodeGetReply(data)
		if err != nil {
			return err
		}
		content = got
		return nil
	})
	return content, err
}

// CallInsert issues a single INSERT of content at p.
func (c *Client) CallInsert(p kpath.Path, content []byte) error {
	return c.call(ksyncproto.MethodInsert, ksyncproto.EncodeInsertArgs(ksyncproto.InsertArgs{
		Path:    p,
		Content: content,
	}), nil)
}

// CallDelete issues a single DELETE of p.
func (c *Client) CallDelete(p kpath.Path) error {
	return c.call(ksyncproto.MethodDelete, ksyncproto.EncodeDeleteArgs(p), nil)
}

// CallGetHistory issues a single GET_HISTORY.
func (c *Client) CallGetHistory() ([]roots.Entry, error) {
	var history []roots.Entry
	err := c.call(ksyncproto.MethodGetHistory, nil, func(data []byte) error {
		h, err := ksyncproto.DecodeGetHistoryReply(data)
		if err != nil {
			return err
		}
		history = h
		return nil
	})
	return history, err
}

// CallRollback issues a single ROLLBACK to sel.
func (c *Client) CallRollback(sel roots.Selector) error {
	return c.call(ksyncproto.MethodRollback, ksyncproto.EncodeRollbackArgs(sel), nil)
}
