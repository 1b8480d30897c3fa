package roots

import (
	"github.com/ksyncdev/ksync/internal/codec"
	"github.com/ksyncdev/ksync/internal/objstore"
	"github.com/pkg/errors"
)

// WriteEntries appends the wire encoding of history to w: a u64 count
// followed by timestamp/pointer pairs, oldest first.
func WriteEntries(w *codec.Writer, history []Entry) {
	w.PutUint64(uint64(len(history)))
	for _, e := range history {
		w.PutUint64(uint64(e.Timestamp))
		w.PutBytes(e.Object[:])
	}
}

// ReadEntries decodes a history written by WriteEntries.
func ReadEntries(r *codec.Reader) ([]Entry, error) {
	count := r.Uint64()
	history := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		ts := int64(r.Uint64())
		raw := r.Bytes()
		if err := r.Err(); err != nil {
			return nil, err
		}
		p, err := objstore.PointerFromBytes(raw)
		if err != nil {
			return nil, err
		}
		history = append(history, Entry{Timestamp: ts, Object: p})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func encodeEntries(history []Entry) []byte {
	w := codec.NewWriter()
	WriteEntries(w, history)
	return w.Bytes()
}

func decodeEntries(data []byte) ([]Entry, error) {
	r := codec.NewReader(data)
	history, err := ReadEntries(r)
	if err != nil {
		return nil, err
	}
	if len(r.Remaining()) != 0 {
		return nil, errors.Wrapf(codec.ErrTruncated, "%d trailing bytes", len(r.Remaining()))
	}
	return history, nil
}

// WriteSelector appends sel's wire encoding to w: a 4-byte kind tag
// followed by the N or Time field relevant to that kind.
func WriteSelector(w *codec.Writer, sel Selector) {
	w.PutUint32(uint32(sel.Kind))
	switch sel.Kind {
	case FromLatest, FromEarliest:
		w.PutUint64(sel.N)
	case AsOfTime:
		w.PutUint64(uint64(sel.Time))
	}
}

// ReadSelector decodes a Selector written by WriteSelector.
func ReadSelector(r *codec.Reader) (Selector, error) {
	kind := SelectorKind(r.Uint32())
	var sel Selector
	sel.Kind = kind
	switch kind {
	case FromLatest, FromEarliest:
		sel.N = r.Uint64()
	case AsOfTime:
		sel.Time = int64(r.Uint64())
	default:
		return Selector{}, errors.Wrapf(ErrRange, "%d", kind)
	}
	if err := r.Err(); err != nil {
		return Selector{}, err
	}
	return sel, nil
}

// EncodeSelector returns sel's standalone wire encoding.
func EncodeSelector(sel Selector) []byte {
	w := codec.NewWriter()
	WriteSelector(w, sel)
	return w.Bytes()
}

// DecodeSelector parses a standalone selector encoding produced by
// EncodeSelector.
func DecodeSelector(data []byte) (Selector, error) {
	r := codec.NewReader(data)
	sel, err := ReadSelector(r)
	if err != nil {
		return Selector{}, err
	}
	if len(r.Remaining()) != 0 {
		return Selector{}, errors.Wrapf(codec.ErrTruncated, "%d trailing bytes", len(r.Remaining()))
	}
	return sel, nil
}
