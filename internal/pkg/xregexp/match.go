// Package xregexp provides cached full-string pattern matching for
// config-supplied patterns, e.g. audit action filters. Patterns without
// regex metacharacters compare as plain strings and never hit the
// regex engine.
package xregexp

import (
	"strings"

	"github.com/dlclark/regexp2/v2"

	"github.com/looplj/approvalhub/internal/pkg/xmap"
)

type compiledPattern struct {
	regex      *regexp2.Regexp
	exact      bool
	compileErr bool
}

var cache = xmap.New[string, *compiledPattern]()

// MatchString reports whether str matches pattern as a whole. Patterns
// that fail to compile match nothing.
func MatchString(pattern string, str string) bool {
	p := compile(pattern)

	if p.compileErr {
		return false
	}

	if p.exact {
		return pattern == str
	}

	match, _ := p.regex.MatchString(str)

	return match
}

// Filter returns the items matching pattern, preserving order. An empty
// or uncompilable pattern matches nothing.
func Filter(items []string, pattern string) []string {
	if pattern == "" {
		return []string{}
	}

	p := compile(pattern)
	if p.compileErr {
		return []string{}
	}

	matched := make([]string, 0)

	for _, item := range items {
		if p.exact {
			if pattern == item {
				matched = append(matched, item)
			}

			continue
		}

		if match, _ := p.regex.MatchString(item); match {
			matched = append(matched, item)
		}
	}

	return matched
}

func compile(pattern string) *compiledPattern {
	if p, ok := cache.Load(pattern); ok {
		return p
	}

	p := &compiledPattern{}

	if !strings.ContainsAny(pattern, "*?+[]{}()^$.|\\") {
		p.exact = true
		cache.Store(pattern, p)

		return p
	}

	compiled, err := regexp2.Compile(anchored(pattern), regexp2.None)
	if err != nil {
		p.compileErr = true
	} else {
		p.regex = compiled
	}

	cache.Store(pattern, p)

	return p
}

// anchored forces full-string matching, leaving already anchored
// patterns alone. A leading inline modifier group like (?i) may sit
// before the ^ anchor.
func anchored(pattern string) string {
	rest := pattern
	if strings.HasPrefix(rest, "(?") {
		if end := strings.IndexByte(rest, ')'); end > 0 && isModifierGroup(rest[2:end]) {
			rest = rest[end+1:]
		}
	}

	if !strings.HasPrefix(rest, "^") {
		pattern = "^" + pattern
	}

	if !strings.HasSuffix(pattern, "$") {
		pattern += "$"
	}

	return pattern
}

func isModifierGroup(flags string) bool {
	if flags == "" {
		return false
	}

	for _, r := range flags {
		switch r {
		case 'i', 'm', 's':
		default:
			return false
		}
	}

	return true
}
