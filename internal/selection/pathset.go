package selection

import "sort"

// PathSet is an unordered set of file paths.
type PathSet map[string]struct{}

// NewPathSet returns a set holding paths.
func NewPathSet(paths ...string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts path into the set.
func (s PathSet) Add(path string) {
	s[path] = struct{}{}
}

// Has reports whether path is in the set.
func (s PathSet) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Len returns the number of paths.
func (s PathSet) Len() int {
	return len(s)
}

// Sorted returns the paths in lexical order.
func (s PathSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Union returns a new set with the paths of both sets.
func (s PathSet) Union(o PathSet) PathSet {
	out := make(PathSet, len(s)+len(o))
	for p := range s {
		out.Add(p)
	}
	for p := range o {
		out.Add(p)
	}
	return out
}

// IsSubsetOf reports whether every path of s is in o.
func (s PathSet) IsSubsetOf(o PathSet) bool {
	for p := range s {
		if !o.Has(p) {
			return false
		}
	}
	return true
}
