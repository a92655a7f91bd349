package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// FriendRequests lists pending incoming friend requests.
type FriendRequests struct {
	*tview.Table
	theme    *ui.Theme
	requests []chat.FriendRequest
}

// NewFriendRequests creates an empty request table.
func NewFriendRequests(theme *ui.Theme) *FriendRequests {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Friend Requests ")
	table.SetTitleColor(theme.TitleColor)
	return &FriendRequests{Table: table, theme: theme}
}

// Name implements Component.
func (fr *FriendRequests) Name() string { return "Requests" }

// Init implements Component.
func (fr *FriendRequests) Init() {}

// Start implements Component.
func (fr *FriendRequests) Start() {}

// Stop implements Component.
func (fr *FriendRequests) Stop() {}

// Hints implements Component.
func (fr *FriendRequests) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "a", Description: "Accept"},
		{Key: "x", Description: "Reject"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update replaces the listed requests.
func (fr *FriendRequests) Update(requests []chat.FriendRequest) {
	fr.requests = requests
	fr.Clear()
	for col, h := range []string{" FROM", " ID", " SENT"} {
		fr.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(fr.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(1))
	}
	for i, r := range requests {
		name := r.Username
		if name == "" {
			name = "User " + r.FromID
		}
		fr.SetCell(i+1, 0, tview.NewTableCell(" "+displayText(name)).SetTextColor(fr.theme.FgColor).SetExpansion(1))
		fr.SetCell(i+1, 1, tview.NewTableCell(" "+r.FromID).SetTextColor(fr.theme.FgColor))
		fr.SetCell(i+1, 2, tview.NewTableCell(formatTimestamp(r.SentAt)).SetTextColor(fr.theme.FgColor).SetAlign(tview.AlignRight))
	}
	fr.SetTitle(fmt.Sprintf(" Friend Requests (%d) ", len(requests)))
}

// Selected returns the sender of the request under the cursor.
func (fr *FriendRequests) Selected() (string, bool) {
	row, _ := fr.GetSelection()
	if row < 1 || row > len(fr.requests) {
		return "", false
	}
	return fr.requests[row-1].FromID, true
}
