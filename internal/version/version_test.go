package version

import (
	"strings"
	"testing"
)

func TestShort(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version, Commit = "v1.2.3", "unknown"
	if got := Short(); got != "v1.2.3" {
		t.Fatalf("Short()=%q", got)
	}
	Commit = "0123456789abcdef"
	if got := Short(); got != "v1.2.3 (0123456)" {
		t.Fatalf("Short()=%q", got)
	}
}

func TestInfoString(t *testing.T) {
	s := Get().String()
	if !strings.HasPrefix(s, "seo-router ") || !strings.Contains(s, "platform: ") {
		t.Fatalf("unexpected: %q", s)
	}
}
