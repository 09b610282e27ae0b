package requestid

import (
	"strings"

	"github.com/google/uuid"
)

const HeaderKey = "X-Request-Id"

// Gen returns a new request id.
func Gen() string {
	return uuid.NewString()
}

// FromHeader returns the incoming id when it looks usable, otherwise a fresh one.
func FromHeader(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > 128 || strings.ContainsAny(v, "\r\n") {
		return Gen()
	}
	return v
}
