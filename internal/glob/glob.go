// Package glob implements the restricted wildcard grammar used by route rules
// and navigation fallback exclusions.
//
// Supported shapes:
//
//	/about            exact path
//	*                 any path
//	/blog/*           any path starting with /blog/
//	/images/*.png     any path under /images/ ending in .png
//	/*.{png,gif}      any path ending in .png or .gif
//
// Exactly one wildcard is allowed and it must be either the last character
// or directly followed by a file extension. Anything else is invalid and
// never matches.
package glob

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the shape of a parsed pattern.
type Kind int

const (
	// KindInvalid marks a pattern that failed to parse. It matches nothing.
	KindInvalid Kind = iota
	// KindExact matches a single literal path.
	KindExact
	// KindAny is the lone "*" pattern.
	KindAny
	// KindPrefix is a trailing wildcard such as "/foo/*".
	KindPrefix
	// KindExtensionSet is a wildcard followed by an extension or {a,b} set.
	KindExtensionSet
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindAny:
		return "any"
	case KindPrefix:
		return "prefix"
	case KindExtensionSet:
		return "extension-set"
	default:
		return "invalid"
	}
}

// Parse errors.
var (
	ErrEmptyPattern       = errors.New("glob: empty pattern")
	ErrMultipleWildcards  = errors.New("glob: more than one wildcard")
	ErrUnbalancedBraces   = errors.New("glob: unbalanced braces")
	ErrMisplacedWildcard  = errors.New("glob: wildcard must end the pattern or precede a file extension")
	ErrEmptyExtension     = errors.New("glob: empty extension")
	ErrUnexpectedBraceSet = errors.New("glob: brace set is only allowed after *.")
)

// Pattern is a parsed glob. The zero value is an invalid pattern.
type Pattern struct {
	raw        string
	kind       Kind
	prefix     string
	extensions []string
}

// Parse converts a raw pattern into its typed form.
func Parse(raw string) (Pattern, error) {
	p := Pattern{raw: raw}

	if raw == "" {
		return p, ErrEmptyPattern
	}
	if err := checkBraces(raw); err != nil {
		return p, err
	}

	star := strings.IndexByte(raw, '*')
	if star < 0 {
		if strings.ContainsAny(raw, "{}") {
			return p, fmt.Errorf("%w: %q", ErrUnexpectedBraceSet, raw)
		}
		p.kind = KindExact
		return p, nil
	}
	if strings.Count(raw, "*") > 1 {
		return p, fmt.Errorf("%w: %q", ErrMultipleWildcards, raw)
	}

	if raw == "*" {
		p.kind = KindAny
		return p, nil
	}

	head, tail := raw[:star], raw[star+1:]
	if strings.ContainsAny(head, "{}") {
		return p, fmt.Errorf("%w: %q", ErrUnexpectedBraceSet, raw)
	}

	if tail == "" {
		p.kind = KindPrefix
		p.prefix = head
		return p, nil
	}

	// Anything after the wildcard must be ".ext" or ".{a,b}" without a path separator.
	if tail[0] != '.' || strings.ContainsRune(tail, '/') {
		return p, fmt.Errorf("%w: %q", ErrMisplacedWildcard, raw)
	}

	exts, err := parseExtensions(tail[1:])
	if err != nil {
		return p, fmt.Errorf("%w: %q", err, raw)
	}

	p.kind = KindExtensionSet
	p.prefix = head
	p.extensions = exts
	return p, nil
}

// MustParse is like Parse but panics on invalid input.
func MustParse(raw string) Pattern {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// IsValid reports whether raw parses into a valid pattern.
func IsValid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

// Match parses pattern and tests path against it. Invalid patterns never match.
func Match(pattern, path string) bool {
	p, err := Parse(pattern)
	if err != nil {
		return false
	}
	return p.Match(path)
}

// Match reports whether path satisfies the pattern.
func (p Pattern) Match(path string) bool {
	switch p.kind {
	case KindExact:
		return path == p.raw
	case KindAny:
		return true
	case KindPrefix:
		return strings.HasPrefix(path, p.prefix)
	case KindExtensionSet:
		if !strings.HasPrefix(path, p.prefix) {
			return false
		}
		rest := path[len(p.prefix):]
		for _, ext := range p.extensions {
			if strings.HasSuffix(rest, "."+ext) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Raw returns the pattern as written.
func (p Pattern) Raw() string { return p.raw }

// Kind returns the pattern shape.
func (p Pattern) Kind() Kind { return p.kind }

// Prefix returns the literal text before the wildcard.
func (p Pattern) Prefix() string { return p.prefix }

// Extensions returns the accepted extensions of an extension-set pattern.
func (p Pattern) Extensions() []string {
	out := make([]string, len(p.extensions))
	copy(out, p.extensions)
	return out
}

// Valid reports whether the pattern parsed successfully.
func (p Pattern) Valid() bool { return p.kind != KindInvalid }

// HasWildcard reports whether the raw text contains a "*", valid or not.
func (p Pattern) HasWildcard() bool { return strings.Contains(p.raw, "*") }

func (p Pattern) String() string {
	return fmt.Sprintf("%s(%s)", p.kind, p.raw)
}

func checkBraces(raw string) error {
	depth := 0
	for _, r := range raw {
		switch r {
		case '{':
			depth++
			if depth > 1 {
				return fmt.Errorf("%w: %q", ErrUnbalancedBraces, raw)
			}
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: %q", ErrUnbalancedBraces, raw)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: %q", ErrUnbalancedBraces, raw)
	}
	return nil
}

func parseExtensions(s string) ([]string, error) {
	if s == "" {
		return nil, ErrEmptyExtension
	}

	open := strings.IndexByte(s, '{')
	if open < 0 {
		return []string{s}, nil
	}

	// Only a single trailing set is supported: "min.{js,css}" yields "min.js", "min.css".
	closing := strings.IndexByte(s, '}')
	if closing != len(s)-1 {
		return nil, ErrUnexpectedBraceSet
	}

	stem := s[:open]
	var exts []string
	for _, alt := range strings.Split(s[open+1:closing], ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return nil, ErrEmptyExtension
		}
		exts = append(exts, stem+alt)
	}
	return exts, nil
}
