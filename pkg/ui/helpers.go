package ui

import (
	"fmt"
	"time"

	"github.com/mattn/go-runewidth"
)

// commitAge renders the time since t in the largest whole unit.
// Zero times render as "unknown", future times as "now".
func commitAge(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := now.Sub(t)
	const day = 24 * time.Hour
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < day:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*day:
		return fmt.Sprintf("%dd ago", int(d/day))
	case d < 30*day:
		return fmt.Sprintf("%dw ago", int(d/(7*day)))
	case d < 365*day:
		return fmt.Sprintf("%dmo ago", int(d/(30*day)))
	}
	return fmt.Sprintf("%dy ago", int(d/(365*day)))
}

// truncate cuts s to at most width terminal cells, marking the cut with an
// ellipsis. Wide runes count double.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// padRight pads s with spaces to width cells.
func padRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
