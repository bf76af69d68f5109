// Package filter decides which source files enter the archive.
package filter

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Patterns is an ordered list of compiled shell-style patterns. Patterns are
// compiled without separators so '*' also matches '/'.
type Patterns struct {
	raw   []string
	globs []glob.Glob
	fold  bool
}

// Compile compiles patterns. With fold set, patterns and inputs are compared
// case-insensitively.
func Compile(patterns []string, fold bool) (*Patterns, error) {
	p := &Patterns{fold: fold}
	for _, raw := range patterns {
		src := raw
		if fold {
			src = strings.ToLower(src)
		}
		g, err := glob.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", raw, err)
		}
		p.raw = append(p.raw, raw)
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// Len returns the number of patterns.
func (p *Patterns) Len() int {
	if p == nil {
		return 0
	}
	return len(p.globs)
}

// Match returns the index of the first pattern matching s, or -1.
func (p *Patterns) Match(s string) int {
	if p == nil {
		return -1
	}
	if p.fold {
		s = strings.ToLower(s)
	}
	for i, g := range p.globs {
		if g.Match(s) {
			return i
		}
	}
	return -1
}

// Pattern returns the source text of pattern i.
func (p *Patterns) Pattern(i int) string { return p.raw[i] }

// Chain applies include and exclude patterns to source paths.
//
//	include and exclude: included paths are accepted, excluded ones rejected, the rest accepted
//	exclude only:        a match rejects
//	include only:        no match rejects
//	neither:             everything is accepted
type Chain struct {
	include *Patterns
	exclude *Patterns
}

// NewChain compiles the include and exclude lists (case-insensitive).
func NewChain(include, exclude []string) (*Chain, error) {
	inc, err := Compile(include, true)
	if err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	exc, err := Compile(exclude, true)
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return &Chain{include: inc, exclude: exc}, nil
}

// Reason explains why a path was rejected.
type Reason string

const (
	Accepted    Reason = ""
	NotIncluded Reason = "not_included"
	Excluded    Reason = "excluded"
)

// Accepts reports whether sourcePath passes the chain.
func (c *Chain) Accepts(sourcePath string) bool {
	return c.Check(sourcePath) == Accepted
}

// Check is Accepts with the rejection reason.
func (c *Chain) Check(sourcePath string) Reason {
	if c == nil {
		return Accepted
	}
	hasInclude, hasExclude := c.include.Len() > 0, c.exclude.Len() > 0
	switch {
	case hasInclude && hasExclude:
		if c.include.Match(sourcePath) >= 0 {
			return Accepted
		}
		if c.exclude.Match(sourcePath) >= 0 {
			return Excluded
		}
	case hasInclude:
		if c.include.Match(sourcePath) < 0 {
			return NotIncluded
		}
	case hasExclude:
		if c.exclude.Match(sourcePath) >= 0 {
			return Excluded
		}
	}
	return Accepted
}
