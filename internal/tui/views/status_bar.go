package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/status"
)

// StatusBar displays the connection state and counters.
type StatusBar struct {
	*tview.TextView
	profile string
	status  status.State
	unread  int
	pending int
	typing  string
	now     func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, now: time.Now}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetStatus updates the connection state.
func (sb *StatusBar) SetStatus(st status.State) {
	sb.status = st
	sb.render()
}

// SetCounters updates the unread and pending send counts.
func (sb *StatusBar) SetCounters(unread, pending int) {
	sb.unread, sb.pending = unread, pending
	sb.render()
}

// SetTyping shows who is typing in the open conversation; empty hides it.
func (sb *StatusBar) SetTyping(name string) {
	sb.typing = name
	sb.render()
}

func stateColor(st status.State) string {
	switch st {
	case status.Ready:
		return "green"
	case status.Connecting, status.Syncing, status.Reconnecting:
		return "yellow"
	case status.Degraded, status.Unauthorized:
		return "red"
	}
	return "gray"
}

func (sb *StatusBar) render() {
	sb.Clear()

	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-]", sb.profile, stateColor(sb.status), sb.status)
	if sb.unread > 0 {
		line += fmt.Sprintf(" | %d unread", sb.unread)
	}
	if sb.pending > 0 {
		line += fmt.Sprintf(" | %d sending", sb.pending)
	}
	if sb.typing != "" {
		line += fmt.Sprintf(" | [::i]%s is typing[-:-:-]", displayText(sb.typing))
	}
	line += " | " + sb.now().Format("15:04")

	_, _ = fmt.Fprint(sb, line)
}
