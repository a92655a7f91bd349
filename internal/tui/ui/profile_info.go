package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData holds the header summary for the running profile.
type ProfileData struct {
	Profile       string
	UserID        string
	Status        string
	Conversations int
	Unread        int
	Pending       int
	Uptime        time.Duration
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile summary.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}

	label := Tag(pi.theme.FgColor)
	value := Tag(pi.theme.CounterColor)
	user := data.UserID
	if user == "" {
		user = "-"
	}

	rows := []struct {
		name string
		val  any
	}{
		{"Profile:", data.Profile},
		{"User:", user},
		{"Status:", data.Status},
		{"Chats:", data.Conversations},
		{"Unread:", data.Unread},
		{"Pending:", data.Pending},
		{"Uptime:", formatDuration(data.Uptime)},
	}
	for i, r := range rows {
		if i > 0 {
			_, _ = fmt.Fprint(pi, "\n")
		}
		_, _ = fmt.Fprintf(pi, "[%s::b]%-9s[-:-:-] [%s]%v[-]", label, r.name, value, r.val)
	}
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
