package zipfile

import (
	"sort"
	"strings"
)

// EntrySet maps normalized entry names to entries. Iteration follows
// insertion order unless sorting is enabled.
type EntrySet struct {
	entries         map[string]*Entry
	order           []string
	caseInsensitive bool
	sorted          bool
}

// NewEntrySet returns an empty set. caseInsensitive folds keys; sorted makes
// Entries return names in lexicographic order.
func NewEntrySet(caseInsensitive, sorted bool) *EntrySet {
	return &EntrySet{
		entries:         make(map[string]*Entry),
		caseInsensitive: caseInsensitive,
		sorted:          sorted,
	}
}

func (s *EntrySet) key(name string) string {
	k := strings.ReplaceAll(name, "\\", "/")
	if s.caseInsensitive {
		k = strings.ToLower(k)
	}
	return k
}

// Len returns the number of entries.
func (s *EntrySet) Len() int {
	return len(s.order)
}

// Put adds e, replacing an entry with the same normalized name in place.
func (s *EntrySet) Put(e *Entry) {
	k := s.key(e.Name)
	if _, ok := s.entries[k]; !ok {
		s.order = append(s.order, k)
	}
	s.entries[k] = e
}

// Find returns the entry for name. A directory may be found with or without
// its trailing slash.
func (s *EntrySet) Find(name string) (*Entry, bool) {
	if e, ok := s.entries[s.key(name)]; ok {
		return e, true
	}
	if !strings.HasSuffix(name, "/") {
		e, ok := s.entries[s.key(name+"/")]
		return e, ok
	}
	return nil, false
}

// Include reports whether name is present.
func (s *EntrySet) Include(name string) bool {
	_, ok := s.Find(name)
	return ok
}

// Delete removes the entry for name and returns it.
func (s *EntrySet) Delete(name string) (*Entry, bool) {
	e, ok := s.Find(name)
	if !ok {
		return nil, false
	}
	k := s.key(e.Name)
	delete(s.entries, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return e, true
}

// Entries returns the entries in iteration order.
func (s *EntrySet) Entries() []*Entry {
	keys := s.order
	if s.sorted {
		keys = append([]string(nil), s.order...)
		sort.Strings(keys)
	}
	out := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.entries[k])
	}
	return out
}

// Clone returns a deep copy of the set and its entries.
func (s *EntrySet) Clone() *EntrySet {
	c := NewEntrySet(s.caseInsensitive, s.sorted)
	for _, k := range s.order {
		c.order = append(c.order, k)
		c.entries[k] = s.entries[k].Clone()
	}
	return c
}

// Equal reports whether both sets hold equal entries in the same order.
func (s *EntrySet) Equal(o *EntrySet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i, k := range s.order {
		if o.order[i] != k || !s.entries[k].Equal(o.entries[k]) {
			return false
		}
	}
	return true
}

// Parent returns the directory entry containing e, if the set has one.
func (s *EntrySet) Parent(e *Entry) (*Entry, bool) {
	name := strings.TrimSuffix(e.Name, "/")
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return nil, false
	}
	return s.Find(name[:i+1])
}

// Glob returns the entries whose names match pattern, in iteration order.
func (s *EntrySet) Glob(pattern string, flags GlobFlags) ([]*Entry, error) {
	m, err := compileGlob(pattern, flags|s.globDefaults())
	if err != nil {
		return nil, err
	}
	var out []*Entry
	for _, e := range s.Entries() {
		if m.match(strings.TrimSuffix(e.Name, "/")) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EntrySet) globDefaults() GlobFlags {
	if s.caseInsensitive {
		return GlobCaseFold
	}
	return 0
}
