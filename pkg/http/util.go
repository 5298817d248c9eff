package http

import (
	"time"

	xutil "stockcast/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseDate parses a YYYY-MM-DD value. Returns (t, true) if it parsed.
func ParseDate(s string) (time.Time, bool) { return xutil.ParseDate(s) }
