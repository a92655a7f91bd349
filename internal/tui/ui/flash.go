package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// flashTTL is how long each level stays on screen.
var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo: 4 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  12 * time.Second,
}

// FlashMessage is one transient status line.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the latest flash message. It is safe for concurrent use.
type FlashModel struct {
	mu      sync.Mutex
	msg     FlashMessage
	changed chan struct{}
	now     func() time.Time
}

// NewFlashModel creates an empty flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{changed: make(chan struct{}, 1), now: time.Now}
}

// Info shows an informational message.
func (f *FlashModel) Info(msg string) { f.Show(FlashInfo, msg) }

// Warn shows a warning.
func (f *FlashModel) Warn(msg string) { f.Show(FlashWarn, msg) }

// Err shows an error.
func (f *FlashModel) Err(err error) { f.Show(FlashErr, err.Error()) }

// Show replaces the current message.
func (f *FlashModel) Show(level FlashLevel, text string) {
	f.mu.Lock()
	f.msg = FlashMessage{Text: text, Level: level, Expires: f.now().Add(flashTTL[level])}
	f.mu.Unlock()
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

// Current returns the message if it has not expired.
func (f *FlashModel) Current() (FlashMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msg.Text == "" || !f.now().Before(f.msg.Expires) {
		return FlashMessage{}, false
	}
	return f.msg, true
}

// Changed signals after every Show. Signals coalesce.
func (f *FlashModel) Changed() <-chan struct{} { return f.changed }

// FlashBar renders the current flash message.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates an empty flash bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Render shows msg, or clears the bar when ok is false.
func (fb *FlashBar) Render(msg FlashMessage, ok bool) {
	fb.Clear()
	if !ok {
		return
	}
	color, mark := Tag(fb.theme.FlashInfoColor), "•"
	switch msg.Level {
	case FlashWarn:
		color, mark = Tag(fb.theme.FlashWarnColor), "!"
	case FlashErr:
		color, mark = Tag(fb.theme.FlashErrColor), "✗"
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s %s[-]", color, mark, tview.Escape(msg.Text))
}
