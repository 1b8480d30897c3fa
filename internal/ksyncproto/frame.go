// Package ksyncproto implements the framed wire protocol: the
// magic/method/data envelope every request and response travels in,
// and the typed argument/return encodings for each RPC method.
package ksyncproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic is the fixed byte sequence that opens every frame.
var Magic = [8]byte{'k', 's', 'y', 'n', 'c', 0, 0, 0}

// Response method-name sentinels.
const (
	MethodOK  = "OK"
	MethodErr = "ERR"
)

// ErrBadMagic is returned when a frame's leading bytes don't match
// Magic.
var ErrBadMagic = errors.New("ksyncproto: bad magic")

// ErrTruncated is returned when a frame is cut short, other than a
// clean EOF exactly at a frame boundary.
var ErrTruncated = errors.New("ksyncproto: truncated frame")

// Frame is one wire message: a method name and its opaque payload.
type Frame struct {
	Method string
	Data   []byte
}

// WriteFrame writes f to w, followed by nothing further; callers must
// flush w themselves if it is buffered.
func WriteFrame(w io.Writer, f Frame) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if err := writeLengthPrefixed(w, []byte(f.Method)); err != nil {
		return err
	}
	return writeLengthPrefixed(w, f.Data)
}

func writeLengthPrefixed(w io.Writer, b []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadFrame reads one frame from r. A clean EOF before any bytes are
// read returns io.EOF unwrapped, signaling an orderly shutdown; any
// other short read returns ErrTruncated, and a magic mismatch returns
// ErrBadMagic.
func ReadFrame(r io.Reader) (Frame, error) {
	var magic [8]byte
	n, err := io.ReadFull(r, magic[:])
	if n == 0 && errors.Is(err, io.EOF) {
		return Frame{}, io.EOF
	}
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if magic != Magic {
		return Frame{}, ErrBadMagic
	}
	method, err := readLengthPrefixed(r)
	if err != nil {
		return Frame{}, err
	}
	data, err := readLengthPrefixed(r)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Method: string(method), Data: data}, nil
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return buf, nil
}
