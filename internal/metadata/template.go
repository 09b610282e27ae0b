package metadata

import (
	"net/url"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{[^}]+\}`)

// IdentifierFromPath strips one trailing slash and returns the last
// non-empty path segment.
func IdentifierFromPath(path string) string {
	p := strings.TrimSuffix(path, "/")
	parts := strings.Split(p, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

// ExpandTemplate replaces the first {placeholder} token in template with id.
// Any later tokens are left as they are.
func ExpandTemplate(template, id string) string {
	loc := placeholderRe.FindStringIndex(template)
	if loc == nil {
		return template
	}
	return template[:loc[0]] + id + template[loc[1]:]
}

// CountPlaceholders reports how many {placeholder} tokens template has.
func CountPlaceholders(template string) int {
	return len(placeholderRe.FindAllStringIndex(template, -1))
}

// EndpointFor is ExpandTemplate applied to the identifier of path. The
// identifier is re-escaped as a single path segment, so an escaped and a
// decoded form of the same path yield the same endpoint and "?", "#" or "/"
// inside it can never leave the segment.
func EndpointFor(path, template string) string {
	return ExpandTemplate(template, escapeSegment(IdentifierFromPath(path)))
}

func escapeSegment(seg string) string {
	if dec, err := url.PathUnescape(seg); err == nil {
		seg = dec
	}
	return url.PathEscape(seg)
}
