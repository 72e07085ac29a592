// Package pathset maintains the set of Haskell source files the REPL
// currently knows about and classifies incoming filesystem events as
// reload-eligible, restart-eligible, or ignorable.
package pathset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchResult is the outcome of testing a path against a Globset.
type MatchResult int

const (
	NoMatch MatchResult = iota
	Included
	Ignored
)

type pattern struct {
	raw    string
	negate bool
}

func (p pattern) match(path string) (bool, error) {
	clean := filepath.ToSlash(path)
	glob := p.raw
	ok, err := doublestar.Match(glob, clean)
	if err != nil {
		return false, fmt.Errorf("pathset: bad glob %q: %w", p.raw, err)
	}
	if !ok {
		// Also allow a bare basename/extension glob like "*.cabal" to match
		// anywhere in the tree, not just at the watch root, matching the
		// gitignore convention the "!"-inverted semantics are modeled on.
		ok, err = doublestar.Match("**/"+glob, clean)
		if err != nil {
			return false, fmt.Errorf("pathset: bad glob %q: %w", p.raw, err)
		}
	}
	return ok, nil
}

// Globset is an ordered sequence of glob patterns with gitignore-style
// semantics inverted: a leading "!" marks an ignore pattern, its absence
// marks an include pattern. The last matching pattern wins.
type Globset struct {
	patterns []pattern
}

// NewGlobset parses raw into a Globset. A configuration error is returned if
// any pattern is not a valid glob.
func NewGlobset(raw []string) (*Globset, error) {
	gs := &Globset{patterns: make([]pattern, 0, len(raw))}
	for _, r := range raw {
		p := pattern{raw: r}
		if strings.HasPrefix(r, "!") {
			p.negate = true
			p.raw = r[1:]
		}
		if p.raw == "" {
			return nil, fmt.Errorf("pathset: empty glob pattern in %q", r)
		}
		// Validate eagerly so bad globs are configuration errors, not
		// surprises at classification time.
		if _, err := doublestar.Match(p.raw, "a"); err != nil {
			return nil, fmt.Errorf("pathset: invalid glob %q: %w", r, err)
		}
		gs.patterns = append(gs.patterns, p)
	}
	return gs, nil
}

// Match returns the last-match-wins classification of path against the
// globset: Included, Ignored, or NoMatch if nothing matched at all.
func (g *Globset) Match(path string) MatchResult {
	if g == nil {
		return NoMatch
	}
	result := NoMatch
	for _, p := range g.patterns {
		ok, err := p.match(path)
		if err != nil || !ok {
			continue
		}
		if p.negate {
			result = Ignored
		} else {
			result = Included
		}
	}
	return result
}
