package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// maxCrumbs is how many trailing pages the bar shows.
const maxCrumbs = 4

// Crumbs shows the page stack as a breadcrumb trail.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates an empty breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update redraws the trail. The top of the stack is highlighted and deep
// stacks are elided from the left.
func (c *Crumbs) Update(stack []string) {
	c.Clear()
	if len(stack) == 0 {
		return
	}
	elided := len(stack) > maxCrumbs
	if elided {
		stack = stack[len(stack)-maxCrumbs:]
	}

	fg, bg := Tag(c.theme.CrumbInactiveFg), Tag(c.theme.CrumbInactiveBg)
	var b strings.Builder
	if elided {
		b.WriteString(" … ›")
	}
	for i, name := range stack {
		if i > 0 {
			b.WriteString(" ›")
		}
		if i == len(stack)-1 {
			fg, bg = Tag(c.theme.CrumbActiveFg), Tag(c.theme.CrumbActiveBg)
		}
		fmt.Fprintf(&b, " [%s:%s:b] %s [-:-:-]", fg, bg, tview.Escape(name))
	}
	_, _ = fmt.Fprint(c, b.String())
}
