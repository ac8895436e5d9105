package util

import (
	"github.com/mattn/go-runewidth"
)

// GetDisplayWidth calculates the terminal column width of a string.
func GetDisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// TruncateMiddle shortens text to width columns by eliding its middle.
// Template names and object paths carry their most useful parts at both ends.
func TruncateMiddle(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}
	if width <= 3 {
		return runewidth.Truncate(text, width, "")
	}

	keep := width - 3
	head := keep / 2
	tail := keep - head

	prefix := runewidth.Truncate(text, head, "")
	runes := []rune(text)
	suffix := ""
	for i := len(runes) - 1; i >= 0; i-- {
		candidate := string(runes[i:])
		if runewidth.StringWidth(candidate) > tail {
			break
		}
		suffix = candidate
	}
	return prefix + "..." + suffix
}
