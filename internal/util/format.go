package util

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatCount renders an integer with thousands separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatMicros renders a microsecond duration the way trace viewers do:
// sub-millisecond values stay in µs, larger ones collapse to ms or s.
func FormatMicros(us int64) string {
	switch {
	case us < 0:
		return "-" + FormatMicros(-us)
	case us < 1000:
		return fmt.Sprintf("%dµs", us)
	case us < 1000000:
		return fmt.Sprintf("%.1fms", float64(us)/1000)
	case us < 60000000:
		return fmt.Sprintf("%.2fs", float64(us)/1000000)
	default:
		return FormatDuration(time.Duration(us) * time.Microsecond)
	}
}

// FormatDuration renders a wall-clock duration with minute granularity.
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// FormatBytes renders a file size in SI units.
func FormatBytes(n int64) string {
	if n < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}
