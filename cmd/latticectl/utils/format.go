// Package utils provides utility functions for the latticectl CLI.
package utils

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDuration renders d in its largest whole unit, e.g. "42s", "7m", "3d".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// FormatSince renders t relative to now ("3 minutes ago"), or "never" for
// the zero time.
func FormatSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// FormatSincePtr is FormatSince for optional timestamps.
func FormatSincePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return FormatSince(*t)
}
