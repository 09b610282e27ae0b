package logx

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

var enableColor = isatty.IsTerminal(os.Stdout.Fd()) && strings.TrimSpace(os.Getenv("NO_COLOR")) == ""

// ColorEnabled reports whether stdout color output is on.
func ColorEnabled() bool { return enableColor }

// ColorizeStatusWith renders status, colored by class when color is true.
func ColorizeStatusWith(status int, color bool) string {
	s := strconv.Itoa(status)
	if !color {
		return s
	}
	const (
		reset  = "\x1b[0m"
		red    = "\x1b[31m"
		green  = "\x1b[32m"
		yellow = "\x1b[33m"
		cyan   = "\x1b[36m"
	)
	switch {
	case status >= 200 && status < 300:
		return green + s + reset
	case status >= 300 && status < 400:
		return cyan + s + reset
	case status >= 400 && status < 500:
		return yellow + s + reset
	default:
		return red + s + reset
	}
}

// FormatRequestLine prints a single line access log entry.
//
// Example:
// [SEO] 2026/01/26 - 17:44:22 | 200 | 12.3ms | 127.0.0.1 | GET "/provider/abc" | kind=dynamic_page pattern=/provider/[^/]+
func FormatRequestLine(
	ts time.Time,
	status int,
	latency time.Duration,
	clientIP string,
	method string,
	path string,
	fields map[string]any,
	color bool,
) string {
	base := fmt.Sprintf(
		`[SEO] %s | %s | %s | %s | %s %q`,
		ts.Format("2006/01/02 - 15:04:05"),
		ColorizeStatusWith(status, color),
		latency.String(),
		strings.TrimSpace(clientIP),
		strings.TrimSpace(method),
		path,
	)
	extra := formatFields(fields)
	if extra == "" {
		return base
	}
	return base + " | " + extra
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = strings.TrimSpace(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = strings.TrimSpace(fmt.Sprintf("%v", v))
		}
		if s == "" || s == "<nil>" {
			continue
		}
		parts = append(parts, k+"="+s)
	}
	return strings.Join(parts, " ")
}
