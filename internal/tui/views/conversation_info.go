package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Init implements Component.
func (ci *ConversationInfo) Init() {}

// Start implements Component.
func (ci *ConversationInfo) Start() {}

// Stop implements Component.
func (ci *ConversationInfo) Stop() {}

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders conversation details. contact is nil for groups and
// unknown peers.
func (ci *ConversationInfo) Update(e chat.ConversationEntry, contact *chat.Contact) {
	ci.Clear()

	fg := ui.Tag(ci.theme.FgColor)
	val := ui.Tag(ci.theme.CounterColor)

	kind := "Direct Message"
	if e.Key.Kind == chat.KindGroup {
		kind = "Group"
	}
	lastActive := formatTimestamp(e.LastTimestamp)
	if lastActive == "" {
		lastActive = "-"
	}
	presence := string(e.Presence)
	if presence == "" {
		presence = "unknown"
	}

	rows := [][2]string{
		{"Name:", e.DisplayName},
		{"ID:", e.Key.String()},
		{"Type:", kind},
		{"Unread:", fmt.Sprint(e.Unread)},
		{"Last Active:", lastActive},
		{"Last Message:", oneLine(e.Preview)},
	}
	if e.Key.Kind == chat.KindDirect {
		rows = append(rows, [2]string{"Presence:", presence})
	}
	if contact != nil && contact.Username != "" {
		rows = append(rows, [2]string{"Username:", contact.Username})
	}

	_, _ = fmt.Fprint(ci, "\n")
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", fg, r[0], val, displayText(r[1]))
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", displayText(e.DisplayName)))
}
