package repository

import (
	"fmt"
	"strings"
)

// Path is an absolute, slash-separated resource URI inside the repository.
// The root path is "/"; no other path has a trailing slash.
type Path string

// RootPath is the top of the resource hierarchy.
const RootPath = Path("/")

// ParsePath validates a raw URI string and returns it as a Path.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return "", fmt.Errorf("empty path")
	}
	if !strings.HasPrefix(s, "/") {
		return "", fmt.Errorf("path %q is not absolute", s)
	}
	if s != "/" && strings.HasSuffix(s, "/") {
		return "", fmt.Errorf("path %q has a trailing slash", s)
	}
	if strings.Contains(s, "//") {
		return "", fmt.Errorf("path %q contains an empty segment", s)
	}
	return Path(s), nil
}

// MustParsePath is ParsePath for known-good literals; it panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsRoot reports whether the path is the repository root.
func (p Path) IsRoot() bool {
	return p == RootPath
}

// Name returns the last path segment ("" for the root).
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	s := string(p)
	return s[strings.LastIndexByte(s, '/')+1:]
}

// Parent returns the parent path; the root is its own parent.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return RootPath
	}
	s := string(p)
	idx := strings.LastIndexByte(s, '/')
	if idx == 0 {
		return RootPath
	}
	return Path(s[:idx])
}

// Depth returns the number of segments below the root (root = 0).
func (p Path) Depth() int {
	if p.IsRoot() {
		return 0
	}
	return strings.Count(string(p), "/")
}

// Ancestors returns all strict ancestors ordered root-first.
// For "/a/b" it returns ["/", "/a"]; the root has none.
func (p Path) Ancestors() []Path {
	if p.IsRoot() {
		return nil
	}
	segments := strings.Split(string(p[1:]), "/")
	ancestors := make([]Path, 0, len(segments))
	ancestors = append(ancestors, RootPath)
	cur := ""
	for _, seg := range segments[:len(segments)-1] {
		cur = cur + "/" + seg
		ancestors = append(ancestors, Path(cur))
	}
	return ancestors
}

// IsAncestorOf reports whether p is a strict ancestor of other.
func (p Path) IsAncestorOf(other Path) bool {
	if p == other {
		return false
	}
	if p.IsRoot() {
		return true
	}
	return strings.HasPrefix(string(other), string(p)+"/")
}

// Extend returns the child path with the given name appended.
func (p Path) Extend(name string) Path {
	if p.IsRoot() {
		return Path("/" + name)
	}
	return Path(string(p) + "/" + name)
}

func (p Path) String() string {
	return string(p)
}
