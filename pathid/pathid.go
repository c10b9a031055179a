// Package pathid implements the canonical hierarchical identifier used to
// address groups and apps in the group tree.
package pathid

import "strings"

// PathId is an ordered sequence of path segments plus an absolute flag.
// The zero value is the empty relative path (""); the absolute root is
// Root.
type PathId struct {
	segments []string
	absolute bool
}

// Root is the distinguished absolute empty path.
var Root = PathId{absolute: true}

// New builds an absolute PathId from the given segments. Empty segments
// are dropped, as they are by Parse.
func New(segments ...string) PathId {
	return PathId{segments: cloneNonEmpty(segments), absolute: true}
}

// Relative builds a relative PathId (one that must be resolved against a
// base via CanonicalPath before use).
func Relative(segments ...string) PathId {
	return PathId{segments: cloneNonEmpty(segments), absolute: false}
}

// Parse splits a "/"-joined string into a PathId. A leading "/" marks the
// id absolute; its absence marks it relative. Repeated slashes collapse.
func Parse(s string) PathId {
	absolute := strings.HasPrefix(s, "/")
	raw := strings.Split(s, "/")
	return PathId{segments: cloneNonEmpty(raw), absolute: absolute}
}

func cloneNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IsAbsolute reports whether the id was constructed as absolute.
func (p PathId) IsAbsolute() bool {
	return p.absolute
}

// IsRoot reports whether p names the distinguished root (absolute, empty).
func (p PathId) IsRoot() bool {
	return p.absolute && len(p.segments) == 0
}

// Segments returns a defensive copy of the path segments.
func (p PathId) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Parent returns the id's parent. The parent of the root is the root.
func (p PathId) Parent() PathId {
	if len(p.segments) == 0 {
		return p
	}

	return PathId{segments: append([]string(nil), p.segments[:len(p.segments)-1]...), absolute: p.absolute}
}

// Name returns the final path segment, or "" for the root.
func (p PathId) Name() string {
	if len(p.segments) == 0 {
		return ""
	}

	return p.segments[len(p.segments)-1]
}

// Child returns a new absolute id with name appended as the last segment.
// The receiver must already be absolute.
func (p PathId) Child(name string) PathId {
	return PathId{segments: append(append([]string(nil), p.segments...), name), absolute: true}
}

// CanonicalPath resolves a possibly-relative id against an absolute base.
// If the receiver is already absolute it is returned unchanged; otherwise
// the base's segments are concatenated with the receiver's.
func (p PathId) CanonicalPath(base PathId) PathId {
	if p.absolute {
		return p
	}

	return PathId{segments: append(append([]string(nil), base.segments...), p.segments...), absolute: true}
}

// Contains reports whether other names a node at or below p in the tree.
func (p PathId) Contains(other PathId) bool {
	if len(other.segments) < len(p.segments) {
		return false
	}

	for i, seg := range p.segments {
		if other.segments[i] != seg {
			return false
		}
	}

	return true
}

// Equal reports structural equality, including the absolute flag.
func (p PathId) Equal(other PathId) bool {
	if p.absolute != other.absolute || len(p.segments) != len(other.segments) {
		return false
	}

	for i, seg := range p.segments {
		if other.segments[i] != seg {
			return false
		}
	}

	return true
}

// Less provides a deterministic lexical ordering, used by the planner for
// tie-breaking and by any code that needs a stable iteration order.
func (p PathId) Less(other PathId) bool {
	return p.String() < other.String()
}

// String serializes the id as a "/"-joined path; the empty root is "/".
func (p PathId) String() string {
	if !p.absolute {
		return strings.Join(p.segments, "/")
	}

	return "/" + strings.Join(p.segments, "/")
}

// MarshalJSON renders the id as its String form.
func (p PathId) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON parses the id from its String form via Parse.
func (p *PathId) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	*p = Parse(s)
	return nil
}
