package ui

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
)

func TestPagesStack(t *testing.T) {
	p := NewPages()
	var seen [][]string
	p.SetOnChange(func(stack []string) { seen = append(seen, stack) })

	p.Reset("conversations")
	p.Push("thread")
	p.Push("details")
	p.Push("details")
	if got := p.Current(); got != "details" {
		t.Errorf("Current = %q", got)
	}
	if len(seen) != 3 {
		t.Errorf("onChange fired %d times, want 3", len(seen))
	}

	p.Push("thread")
	if !slices.Equal(p.Stack(), []string{"conversations", "details", "thread"}) {
		t.Errorf("Stack after re-push = %v", p.Stack())
	}
	if got := p.Pop(); got != "thread" {
		t.Errorf("Pop = %q", got)
	}
	p.Pop()
	if p.Pop() != "" || p.Depth() != 1 || p.Current() != "conversations" {
		t.Errorf("root popped: %v", p.Stack())
	}
	if !p.Contains("conversations") || p.Contains("thread") {
		t.Error("Contains")
	}
}

func TestFlashExpires(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	f.Info("sent")
	if m, ok := f.Current(); !ok || m.Text != "sent" || m.Level != FlashInfo {
		t.Errorf("Current = %+v, %v", m, ok)
	}
	select {
	case <-f.Changed():
	default:
		t.Error("no change signal")
	}

	now = now.Add(flashTTL[FlashInfo])
	if _, ok := f.Current(); ok {
		t.Error("expired flash still visible")
	}

	f.Warn("slow")
	f.Warn("slower")
	if len(f.Changed()) != 1 {
		t.Error("change signals did not coalesce")
	}
}

func TestFlashBar(t *testing.T) {
	fb := NewFlashBar(DefaultTheme())
	fb.Render(FlashMessage{Text: "send: [boom]", Level: FlashErr}, true)
	if got := fb.GetText(true); !strings.Contains(got, "boom") || !strings.Contains(got, "✗") {
		t.Errorf("flash text = %q", got)
	}
	fb.Render(FlashMessage{}, false)
	if fb.GetText(true) != "" {
		t.Error("flash bar not cleared")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                           "0m",
		42 * time.Minute:            "42m",
		2*time.Hour + 5*time.Minute: "2h5m",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	var got []string
	p.SetOnSubmit(func(mode PromptMode, text string) { got = append(got, text) })

	p.Activate(PromptSearch)
	if p.Mode() != PromptSearch || p.GetLabel() != "search: " {
		t.Errorf("mode = %v label = %q", p.Mode(), p.GetLabel())
	}
	for _, q := range []string{"lunch", "train"} {
		p.SetText(q)
		p.done(tcell.KeyEnter)
	}
	if !slices.Equal(got, []string{"lunch", "train"}) {
		t.Errorf("submitted %v", got)
	}

	up := tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
	p.recall(up)
	p.recall(up)
	if p.GetText() != "lunch" {
		t.Errorf("recalled %q", p.GetText())
	}

	p.Activate(PromptCommand)
	p.recall(up)
	if p.GetText() != "" {
		t.Errorf("command history leaked %q", p.GetText())
	}
	if p.GetLabel() != ":" {
		t.Errorf("command label = %q", p.GetLabel())
	}
}

func TestMenuColumns(t *testing.T) {
	m := NewMenu(DefaultTheme())
	var hints []MenuHint
	for i := range 8 {
		hints = append(hints, MenuHint{Key: string(rune('a' + i)), Description: "do"})
	}
	m.Update(hints)
	lines := strings.Split(m.GetText(true), "\n")
	if len(lines) != menuRows {
		t.Fatalf("menu has %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "<a>") || !strings.Contains(lines[0], "<g>") {
		t.Errorf("first row = %q", lines[0])
	}
}

func TestCrumbsElide(t *testing.T) {
	c := NewCrumbs(DefaultTheme())
	c.Update([]string{"a", "b", "c", "d", "e"})
	got := c.GetText(true)
	if !strings.HasPrefix(strings.TrimSpace(got), "…") || strings.Contains(got, " a ") {
		t.Errorf("crumbs = %q", got)
	}
}
