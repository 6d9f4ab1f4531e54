// Package dfs holds the domain types shared by the naming server, the
// storage servers and the wire protocol: filesystem paths, error codes and
// the two remote capability interfaces every storage server exposes.
package dfs

import "strings"

// Path is an immutable, component-structured filesystem path.
//
// The string representation is a forward-slash-delimited sequence of
// components; the root directory is the single slash. The colon and the
// forward slash are not permitted within components: the slash is the
// delimiter and the colon is reserved as a delimiter for application use.
//
// Path values compare with Equal, are usable as map keys through String,
// and round-trip through ParsePath.
type Path struct {
	components []string
}

// Root returns the path of the root directory.
func Root() Path {
	return Path{}
}

// NewPath builds a path directly from components. Each component must be
// non-empty and free of '/' and ':'.
func NewPath(components ...string) (Path, error) {
	p := Path{}
	for _, component := range components {
		next, err := p.Append(component)
		if err != nil {
			return Path{}, err
		}
		p = next
	}
	return p, nil
}

// ParsePath parses the slash-delimited string form of a path.
//
// The string must begin with a forward slash and must not contain a colon.
// Empty components between slashes are dropped, so "/a//b/" parses to the
// same path as "/a/b".
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, NewError(ErrInvalidPath, "path is empty")
	}
	if s[0] != '/' {
		return Path{}, NewError(ErrInvalidPath, "path does not begin with a forward slash: "+s)
	}
	if strings.Contains(s, ":") {
		return Path{}, NewError(ErrInvalidPath, "path contains a colon: "+s)
	}

	var components []string
	for _, component := range strings.Split(s, "/") {
		if component != "" {
			components = append(components, component)
		}
	}
	return Path{components: components}, nil
}

// MustParsePath is ParsePath for compile-time-constant paths; it panics on
// invalid input and is intended for tests and defaults.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Append returns a new path with component added after the receiver's
// components. The receiver is not modified.
func (p Path) Append(component string) (Path, error) {
	if component == "" {
		return Path{}, NewError(ErrInvalidPath, "path component is empty")
	}
	if strings.ContainsAny(component, "/:") {
		return Path{}, NewError(ErrInvalidPath, "path component contains '/' or ':': "+component)
	}

	components := make([]string, 0, len(p.components)+1)
	components = append(components, p.components...)
	components = append(components, component)
	return Path{components: components}, nil
}

// IsRoot reports whether the path is the root directory.
func (p Path) IsRoot() bool {
	return len(p.components) == 0
}

// Parent returns the path one component shorter than the receiver.
// The root directory has no parent.
func (p Path) Parent() (Path, error) {
	if p.IsRoot() {
		return Path{}, NewError(ErrInvalidPath, "the root directory has no parent")
	}
	return Path{components: p.components[:len(p.components)-1]}, nil
}

// Last returns the final component of the path.
// The root directory has no last component.
func (p Path) Last() (string, error) {
	if p.IsRoot() {
		return "", NewError(ErrInvalidPath, "the root directory has no last component")
	}
	return p.components[len(p.components)-1], nil
}

// Components returns the components from root toward leaf. The returned
// slice must not be modified.
func (p Path) Components() []string {
	return p.components
}

// IsSubpath reports whether other is a prefix of p. Every path is a
// subpath of itself, and every path is a subpath of the root.
func (p Path) IsSubpath(other Path) bool {
	if len(other.components) > len(p.components) {
		return false
	}
	for i, component := range other.components {
		if p.components[i] != component {
			return false
		}
	}
	return true
}

// Equal reports whether two paths share all the same components.
func (p Path) Equal(other Path) bool {
	if len(p.components) != len(other.components) {
		return false
	}
	for i, component := range p.components {
		if other.components[i] != component {
			return false
		}
	}
	return true
}

// Compare provides a total order over paths: component-wise lexicographic,
// with a strict prefix ordering before any of its extensions. A strict
// ancestor therefore always sorts before its descendants, so callers that
// lock multiple paths can sort first and never invert an ancestor/
// descendant pair.
func (p Path) Compare(other Path) int {
	n := len(p.components)
	if len(other.components) < n {
		n = len(other.components)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(p.components[i], other.components[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(p.components) < len(other.components):
		return -1
	case len(p.components) > len(other.components):
		return 1
	default:
		return 0
	}
}

// String renders the slash-delimited form. The result is a valid argument
// to ParsePath.
func (p Path) String() string {
	if len(p.components) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.components, "/")
}
