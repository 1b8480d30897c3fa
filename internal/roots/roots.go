// Package roots implements the append-only, versioned registry mapping
// a root name (such as "fs" or "keyring") to its history of snapshots,
// each an object pointer stamped with the time it was recorded. Every
// update appends a new entry; nothing is ever overwritten or removed,
// which is what makes Resolve's relative and absolute selectors
// meaningful at any point in time.
package roots

import (
	"time"

	"github.com/ksyncdev/ksync/internal/kv"
	"github.com/ksyncdev/ksync/internal/objstore"
	"github.com/pkg/errors"
)

// Entry is one recorded snapshot of a root.
type Entry struct {
	Timestamp int64
	Object    objstore.Pointer
}

// SelectorKind discriminates how a Selector addresses history.
type SelectorKind uint8

const (
	FromLatest SelectorKind = iota
	FromEarliest
	AsOfTime
)

// Selector addresses one entry in a root's history.
type Selector struct {
	Kind SelectorKind
	N    uint64
	Time int64
}

// Latest selects the entry n steps back from the most recent (Latest(0)
// is the current snapshot).
func Latest(n uint64) Selector { return Selector{Kind: FromLatest, N: n} }

// Earliest selects the entry n steps forward from the first ever
// recorded (Earliest(0) is the very first snapshot).
func Earliest(n uint64) Selector { return Selector{Kind: FromEarliest, N: n} }

// AtTime selects the most recent entry recorded strictly before t.
func AtTime(t time.Time) Selector { return Selector{Kind: AsOfTime, Time: t.UnixNano()} }

// ErrRange is returned when a Selector does not resolve to any entry in
// a root's history.
var ErrRange = errors.New("roots: selector out of range")

// ErrNoSuchRoot is returned when a name has never been given a history.
var ErrNoSuchRoot = errors.New("roots: no such root")

// Registry is the persistent store of root histories, one per name,
// backed by the shared embedded database's "roots" bucket.
type Registry struct {
	db *kv.DB
}

// New returns a registry backed by db.
func New(db *kv.DB) *Registry {
	return &Registry{db: db}
}

// GetHistory returns the full, oldest-first history recorded for name.
func (r *Registry) GetHistory(name string) ([]Entry, error) {
	raw, err := r.db.Get(kv.BucketRoots, []byte(name))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, errors.Wrapf(ErrNoSuchRoot, "%s", name)
	}
	if err != nil {
		return nil, err
	}
	return decodeEntries(raw)
}

// Resolve returns the entry sel addresses within name's history.
func (r *Registry) Resolve(name string, sel Selector) (Entry, error) {
	const method = "Registry.Resolve"
	history, err := r.GetHistory(name)
	if err != nil {
		return Entry{}, err
	}
	switch sel.Kind {
	case FromLatest:
		idx := len(history) - 1 - int(sel.N)
		if idx < 0 || idx >= len(history) {
			return Entry{}, errors.Wrapf(ErrRange, "%s: latest(%d)", name, sel.N)
		}
		return history[idx], nil
	case FromEarliest:
		idx := int(sel.N)
		if idx < 0 || idx >= len(history) {
			return Entry{}, errors.Wrapf(ErrRange, "%s: earliest(%d)", name, sel.N)
		}
		return history[idx], nil
	case AsOfTime:
		best := -1
		for i, e := range history {
			if e.Timestamp < sel.Time {
				best = i
			}
		}
		if best < 0 {
			return Entry{}, errors.Wrapf(ErrRange, "%s: as-of %d", name, sel.Time)
		}
		return history[best], nil
	default:
		return Entry{}, errorf(method, "%d: %w", sel.Kind, ErrRange)
	}
}

// Set appends a new entry for name recording obj at the current time.
// It is implemented as a single atomic merge so concurrent setters for
// the same name never clobber one another's history.
func (r *Registry) Set(name string, obj objstore.Pointer) error {
	return r.db.Merge(kv.BucketRoots, []byte(name), func(old []byte) ([]byte, error) {
		var history []Entry
		if old != nil {
			var err error
			history, err = decodeEntries(old)
			if err != nil {
				return nil, err
			}
		}
		history = append(history, Entry{Timestamp: time.Now().UnixNano(), Object: obj})
		return encodeEntries(history), nil
	})
}

// Ensure records seed as name's first entry if name has no history yet.
// It is a no-op if name already exists.
func (r *Registry) Ensure(name string, seed objstore.Pointer) error {
	return r.db.Merge(kv.BucketRoots, []byte(name), func(old []byte) ([]byte, error) {
		if old != nil {
			return old, nil
		}
		history := []Entry{{Timestamp: time.Now().UnixNano(), Object: seed}}
		return encodeEntries(history), nil
	})
}
