package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode selects what a submitted prompt line means.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
	PromptSearch
)

var promptLabels = map[PromptMode]struct{ label, title string }{
	PromptCommand: {":", " Command "},
	PromptFilter:  {"/", " Filter "},
	PromptSearch:  {"search: ", " Search cached messages "},
}

// historySize bounds remembered submissions per mode.
const historySize = 50

// Prompt is the single-line input bar for commands, filters and searches.
// Up and Down recall earlier submissions of the active mode.
type Prompt struct {
	*tview.InputField
	mode     PromptMode
	history  map[PromptMode][]string
	cursor   int
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a prompt in command mode.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{InputField: input, history: make(map[PromptMode][]string)}
	input.SetDoneFunc(p.done)
	input.SetInputCapture(p.recall)
	p.Activate(PromptCommand)
	return p
}

func (p *Prompt) done(key tcell.Key) {
	text := p.GetText()
	p.SetText("")
	switch key {
	case tcell.KeyEnter:
		if text == "" {
			return
		}
		p.remember(text)
		if p.onSubmit != nil {
			p.onSubmit(p.mode, text)
		}
	case tcell.KeyEscape:
		if p.onCancel != nil {
			p.onCancel()
		}
	}
}

func (p *Prompt) remember(text string) {
	h := p.history[p.mode]
	if n := len(h); n == 0 || h[n-1] != text {
		h = append(h, text)
	}
	if len(h) > historySize {
		h = h[len(h)-historySize:]
	}
	p.history[p.mode] = h
	p.cursor = len(h)
}

func (p *Prompt) recall(ev *tcell.EventKey) *tcell.EventKey {
	h := p.history[p.mode]
	switch ev.Key() {
	case tcell.KeyUp:
		if p.cursor > 0 {
			p.cursor--
			p.SetText(h[p.cursor])
		}
		return nil
	case tcell.KeyDown:
		if p.cursor < len(h)-1 {
			p.cursor++
			p.SetText(h[p.cursor])
		} else {
			p.cursor = len(h)
			p.SetText("")
		}
		return nil
	}
	return ev
}

// SetOnSubmit sets the callback for a non-empty Enter.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) { p.onSubmit = fn }

// SetOnCancel sets the callback for Escape.
func (p *Prompt) SetOnCancel(fn func()) { p.onCancel = fn }

// Activate switches mode and clears the line.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.cursor = len(p.history[mode])
	p.SetText("")
	l := promptLabels[mode]
	p.SetLabel(l.label)
	p.SetTitle(l.title)
}

// Mode returns the active mode.
func (p *Prompt) Mode() PromptMode { return p.mode }
