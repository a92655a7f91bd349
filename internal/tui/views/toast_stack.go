package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// ToastStack renders visible notifications, newest first.
type ToastStack struct {
	*tview.TextView
	theme  *ui.Theme
	toasts []notify.Toast
}

// NewToastStack creates an empty toast stack.
func NewToastStack(theme *ui.Theme) *ToastStack {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.ToastBorder)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTitle(" Notifications ")
	tv.SetTitleColor(theme.TitleColor)
	return &ToastStack{TextView: tv, theme: theme}
}

// Update replaces the rendered toasts.
func (ts *ToastStack) Update(toasts []notify.Toast) {
	ts.toasts = toasts
	ts.Clear()
	for i, t := range toasts {
		if i > 0 {
			_, _ = fmt.Fprint(ts, "\n")
		}
		title := displayText(t.Title)
		if t.Count > 1 {
			title = fmt.Sprintf("%s (%d)", title, t.Count)
		}
		_, _ = fmt.Fprintf(ts, "[%s::b]%s[-:-:-]\n%s\n", ui.Tag(ts.categoryColor(t.Category)), title, displayText(oneLine(t.Body)))
	}
}

func (ts *ToastStack) categoryColor(c notify.Category) tcell.Color {
	switch c {
	case notify.CategorySystem:
		return ts.theme.SystemColor
	case notify.CategoryFriend:
		return ts.theme.OnlineColor
	}
	return ts.theme.TitleColor
}

// Height returns the rows needed to show every toast, 0 when empty.
func (ts *ToastStack) Height() int {
	if len(ts.toasts) == 0 {
		return 0
	}
	return 3*len(ts.toasts) + 1
}

// Newest returns the most recent toast.
func (ts *ToastStack) Newest() (notify.Toast, bool) {
	if len(ts.toasts) == 0 {
		return notify.Toast{}, false
	}
	return ts.toasts[0], true
}
