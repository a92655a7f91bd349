package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// ConversationList is the main conversation list view.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	entries []chat.ConversationEntry
	visible []chat.Key
	filter  string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Init implements Component.
func (cl *ConversationList) Init() {}

// Start implements Component.
func (cl *ConversationList) Start() {}

// Stop implements Component.
func (cl *ConversationList) Stop() {}

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "f", Description: "Requests"},
		{Key: "t", Description: "Open toast"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the list with new entries, keeping the selected
// conversation selected when it is still present.
func (cl *ConversationList) Update(entries []chat.ConversationEntry) {
	selected := cl.SelectedKey()
	cl.entries = entries
	cl.render()
	if selected.IsZero() {
		return
	}
	for i, k := range cl.visible {
		if k == selected {
			cl.Select(i+1, 0)
			return
		}
	}
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.SetFilter("")
}

func (cl *ConversationList) matches(e chat.ConversationEntry) bool {
	return cl.filter == "" || containsFold(e.DisplayName, cl.filter) || containsFold(e.Preview, cl.filter)
}

func (cl *ConversationList) render() {
	cl.Clear()
	cl.visible = cl.visible[:0]

	headers := []struct {
		text string
		exp  int
	}{
		{" ", 0},
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" TYPE", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	row := 1
	for _, e := range cl.entries {
		if !cl.matches(e) {
			continue
		}
		name := e.DisplayName
		if name == "" {
			name = e.Key.ID
		}
		if e.Unread > 0 {
			name = fmt.Sprintf("(%d) %s", e.Unread, name)
		}
		dot := tview.NewTableCell(" ")
		if e.Presence == chat.PresenceOnline {
			dot = tview.NewTableCell(" ●").SetTextColor(cl.theme.OnlineColor)
		}
		kind := "DM"
		if e.Key.Kind == chat.KindGroup {
			kind = "GROUP"
		}

		cl.SetCell(row, 0, dot)
		cl.SetCell(row, 1, tview.NewTableCell(" "+displayText(name)).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+displayText(oneLine(e.Preview))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 3, tview.NewTableCell(formatTimestamp(e.LastTimestamp)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 4, tview.NewTableCell(kind).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.visible = append(cl.visible, e.Key)
		row++
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.entries), cl.filter))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.entries)))
	}
}

// SelectedKey returns the conversation under the cursor.
func (cl *ConversationList) SelectedKey() chat.Key {
	row, _ := cl.GetSelection()
	return cl.KeyByIndex(row)
}

// KeyByIndex returns the Nth visible conversation (1-based).
func (cl *ConversationList) KeyByIndex(n int) chat.Key {
	if n < 1 || n > len(cl.visible) {
		return chat.Key{}
	}
	return cl.visible[n-1]
}

// Entry returns the entry for key.
func (cl *ConversationList) Entry(key chat.Key) (chat.ConversationEntry, bool) {
	for _, e := range cl.entries {
		if e.Key == key {
			return e, true
		}
	}
	return chat.ConversationEntry{}, false
}
