package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Init implements Component.
func (hv *HelpView) Init() {}

// Start implements Component.
func (hv *HelpView) Start() {}

// Stop implements Component.
func (hv *HelpView) Stop() {}

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

type helpSection struct {
	title string
	rows  [][2]string
}

var helpSections = []helpSection{
	{"Global Keys", [][2]string{
		{":", "Command mode"},
		{"/", "Filter conversations"},
		{"?", "Help"},
		{"Esc", "Cancel / go back"},
		{"q", "Quit"},
		{"t", "Open newest notification"},
		{"x", "Dismiss newest notification"},
	}},
	{"Conversation List", [][2]string{
		{"Enter", "Open conversation"},
		{"1-9", "Jump to Nth conversation"},
		{"f", "Friend requests"},
	}},
	{"Friend Requests", [][2]string{
		{"a", "Accept selected request"},
		{"x", "Reject selected request"},
	}},
	{"Message Thread", [][2]string{
		{"i", "Focus composer"},
		{"r", "Retry last failed message"},
		{"d", "Conversation details"},
	}},
	{"Composer", [][2]string{
		{"/retry", "Resend the last failed message"},
		{"/react <emoji>", "React to the last incoming message"},
		{"/reply <id> <text>", "Reply to the message with that id"},
		{"/sticker <url>", "Send a sticker"},
		{"/file <url>", "Send an uploaded file"},
		{"/mode <policy>", "single_latest, queue or multiple"},
		{"//text", "Send text starting with a slash"},
	}},
	{"Commands (: mode)", [][2]string{
		{":search <query>", "Search cached messages"},
		{":chat <name>", "Open conversation by name"},
		{":accept <id>", "Accept a friend request"},
		{":reject <id>", "Reject a friend request"},
		{":friend <id>", "Send a friend request"},
		{":block <id>", "Block a user"},
		{":unblock <id>", "Unblock a user"},
		{":mode <policy>", "Notification policy"},
		{":quit", "Quit application"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.Tag(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, r := range s.rows {
			fmt.Fprintf(&b, "  [%s]%-18s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}
