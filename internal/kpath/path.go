// Package kpath implements the path algebra of the synchronized
// filesystem: absolute, slash-separated paths with no empty components
// other than the root itself.
package kpath

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned when a string does not satisfy the path
// invariants: starts with "/", no "//", no trailing slash (unless the
// path is the root itself).
var ErrInvalid = errors.New("kpath: invalid path")

// Path is a validated absolute path.
type Path string

// Root is the path with no parent and no name.
const Root Path = "/"

// New validates s and returns it as a Path.
func New(s string) (Path, error) {
	if !strings.HasPrefix(s, "/") {
		return "", fmt.Errorf("%q: %w", s, ErrInvalid)
	}
	if s == "/" {
		return Root, nil
	}
	if strings.HasSuffix(s, "/") {
		return "", fmt.Errorf("%q: %w", s, ErrInvalid)
	}
	for _, part := range strings.Split(s[1:], "/") {
		if part == "" {
			return "", fmt.Errorf("%q: %w", s, ErrInvalid)
		}
	}
	return Path(s), nil
}

// MustNew is New, panicking on an invalid path. Intended for literals
// known valid at compile time (e.g. seeding well-known roots).
func MustNew(s string) Path {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsRoot reports whether p is the root path.
func (p Path) IsRoot() bool {
	return p == Root
}

// Parts splits p into its slash-separated components. The root has no
// parts.
func (p Path) Parts() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(string(p)[1:], "/")
}

// Split returns p's parent and its last component. The root has no
// parent part distinct from itself and no name.
func (p Path) Split() (parent Path, name string) {
	parts := p.Parts()
	if len(parts) == 0 {
		return Root, ""
	}
	name = parts[len(parts)-1]
	if len(parts) == 1 {
		return Root, name
	}
	return Path("/" + strings.Join(parts[:len(parts)-1], "/")), name
}

// Join appends name as a new final component of p.
func Join(p Path, name string) Path {
	if p.IsRoot() {
		return Path("/" + name)
	}
	return Path(string(p) + "/" + name)
}

// Ancestors enumerates every proper ancestor directory of p, excluding
// the root (which always exists) and excluding p itself, in root-to-leaf
// order. For "/a/b/c" this yields ["/a", "/a/b"].
func (p Path) Ancestors() []Path {
	parts := p.Parts()
	if len(parts) < 2 {
		return nil
	}
	out := make([]Path, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		out = append(out, Path("/"+strings.Join(parts[:i], "/")))
	}
	return out
}

func (p Path) String() string {
	return string(p)
}
