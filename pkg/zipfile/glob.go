package zipfile

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// GlobFlags tune entry name matching.
type GlobFlags uint8

const (
	// GlobPathname stops "*" and "?" at "/"; "**" still crosses directories.
	GlobPathname GlobFlags = 1 << iota
	// GlobCaseFold matches without regard to case.
	GlobCaseFold
)

// DefaultGlobFlags matches path segments separately and respects case.
const DefaultGlobFlags = GlobPathname

type globMatcher struct {
	g    glob.Glob
	fold bool
}

func compileGlob(pattern string, flags GlobFlags) (*globMatcher, error) {
	fold := flags&GlobCaseFold != 0
	if fold {
		pattern = strings.ToLower(pattern)
	}
	var seps []rune
	if flags&GlobPathname != 0 {
		seps = []rune{'/'}
	}
	g, err := glob.Compile(strings.TrimSuffix(pattern, "/"), seps...)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %q", pattern)
	}
	return &globMatcher{g: g, fold: fold}, nil
}

func (m *globMatcher) match(name string) bool {
	if m.fold {
		name = strings.ToLower(name)
	}
	return m.g.Match(name)
}
