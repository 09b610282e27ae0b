package requestid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGen(t *testing.T) {
	a, b := Gen(), Gen()
	if a == b {
		t.Fatalf("ids must differ")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("not a uuid: %q", a)
	}
}

func TestFromHeader(t *testing.T) {
	if got := FromHeader(" abc "); got != "abc" {
		t.Fatalf("got %q", got)
	}
	for _, bad := range []string{"", "   ", strings.Repeat("x", 129), "a\nb"} {
		got := FromHeader(bad)
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("FromHeader(%q)=%q, want generated uuid", bad, got)
		}
	}
}
