package routes

import (
	"fmt"
	"regexp"
	"strings"
)

// Spec is one configured route before compilation.
type Spec struct {
	Pattern          string `yaml:"pattern" json:"pattern"`
	MetadataEndpoint string `yaml:"metadata_endpoint" json:"metadata_endpoint"`
}

// Pattern is a compiled route: a path matcher plus the metadata endpoint
// template used for paths it matches.
type Pattern struct {
	Index            int
	Source           string
	EndpointTemplate string

	re *regexp.Regexp
}

// MatchString reports whether the normalized path matches p.
func (p *Pattern) MatchString(path string) bool {
	if p == nil || p.re == nil {
		return false
	}
	return p.re.MatchString(path)
}

// Registry holds patterns in registration order. It is never mutated after New;
// a reload builds a new Registry.
type Registry struct {
	patterns []*Pattern
}

// New compiles specs in order. The first invalid spec fails the whole set.
func New(specs []Spec) (*Registry, error) {
	out := &Registry{patterns: make([]*Pattern, 0, len(specs))}
	for i, s := range specs {
		src := strings.TrimSpace(s.Pattern)
		if src == "" {
			return nil, fmt.Errorf("patterns[%d]: pattern is empty", i)
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("patterns[%d]: compile %q: %w", i, src, err)
		}
		tpl := strings.TrimSpace(s.MetadataEndpoint)
		if tpl == "" {
			return nil, fmt.Errorf("patterns[%d]: metadata_endpoint is empty", i)
		}
		out.patterns = append(out.patterns, &Pattern{
			Index:            i,
			Source:           src,
			EndpointTemplate: tpl,
			re:               re,
		})
	}
	return out, nil
}

// MustNew is New for tests and static tables.
func MustNew(specs ...Spec) *Registry {
	r, err := New(specs)
	if err != nil {
		panic(err)
	}
	return r
}

// Match returns the first pattern matching the normalized path.
func (r *Registry) Match(path string) (*Pattern, bool) {
	if r == nil {
		return nil, false
	}
	p := NormalizePath(path)
	for _, pat := range r.patterns {
		if pat.MatchString(p) {
			return pat, true
		}
	}
	return nil, false
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.patterns)
}

// Patterns returns a copy of the registered patterns in order.
func (r *Registry) Patterns() []Pattern {
	if r == nil {
		return nil
	}
	out := make([]Pattern, 0, len(r.patterns))
	for _, p := range r.patterns {
		out = append(out, *p)
	}
	return out
}

// NormalizePath appends a trailing slash when absent, so "/a/b" and "/a/b/"
// classify the same way.
func NormalizePath(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}
