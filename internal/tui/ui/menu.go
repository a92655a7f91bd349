package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows is the height of one hint column.
const menuRows = 6

// Menu lays key hints out in columns of menuRows entries.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates an empty hint menu.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update redraws the menu for hints.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	if len(hints) == 0 {
		return
	}

	cols := (len(hints) + menuRows - 1) / menuRows
	widths := make([]int, cols)
	for i, h := range hints {
		widths[i/menuRows] = max(widths[i/menuRows], tview.TaggedStringWidth(h.String()))
	}

	rows := min(len(hints), menuRows)
	lines := make([]string, rows)
	for i, h := range hints {
		col, row := i/menuRows, i%menuRows
		kc := Tag(m.theme.MenuKeyColor)
		if h.Numeric {
			kc = Tag(m.theme.NumericKeyColor)
		}
		pad := widths[col] - tview.TaggedStringWidth(h.String()) + 2
		lines[row] += fmt.Sprintf("[%s::b]<%s>[-:-:-] %s%s", kc, tview.Escape(h.Key), h.Description, strings.Repeat(" ", pad))
	}
	_, _ = fmt.Fprint(m, strings.Join(lines, "\n"))
}
