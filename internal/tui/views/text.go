package views

import (
	"strings"
	"time"

	"github.com/rivo/tview"
)

// displayText prepares user content for a tview cell: codepoints that break
// tcell's width calculation are removed and style tags are escaped.
func displayText(s string) string {
	return tview.Escape(strings.Map(func(r rune) rune {
		switch {
		case r >= 0x1F3FB && r <= 0x1F3FF: // skin tone modifiers
			return -1
		case r == 0x200D: // zero width joiner
			return -1
		case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF: // variation selectors
			return -1
		}
		return r
	}, s))
}

// oneLine truncates s at the first newline.
func oneLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
