package views

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/chat"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// NameFunc resolves a sender id for display.
type NameFunc func(id string) string

// MessageThread displays messages and a composer for a single conversation.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	typing   *tview.TextView
	composer *tview.InputField
	title    string
	key      chat.Key
	self     string
	onSend   func(text string)
	onInput  func()
	onBlur   func()
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	typing := tview.NewTextView().SetDynamicColors(true)
	typing.SetBackgroundColor(theme.BgColor)
	typing.SetTextColor(theme.TypingColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus, /retry /react /sticker /file /mode) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(typing, 1, 0, false).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		typing:   typing,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if strings.TrimSpace(text) != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})
	composer.SetChangedFunc(func(text string) {
		if text != "" && !strings.HasPrefix(text, "/") && mt.onInput != nil {
			mt.onInput()
		}
	})
	composer.SetBlurFunc(func() {
		if mt.onBlur != nil {
			mt.onBlur()
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.title != "" {
		return mt.title
	}
	return "Messages"
}

// Init implements Component.
func (mt *MessageThread) Init() {}

// Start implements Component.
func (mt *MessageThread) Start() {}

// Stop implements Component.
func (mt *MessageThread) Stop() {}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "r", Description: "Retry failed"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// SetOnSend sets the callback when the composer submits text.
func (mt *MessageThread) SetOnSend(fn func(text string)) { mt.onSend = fn }

// SetOnInput sets the callback for composer keystrokes.
func (mt *MessageThread) SetOnInput(fn func()) { mt.onInput = fn }

// SetOnBlur sets the callback when the composer loses focus.
func (mt *MessageThread) SetOnBlur(fn func()) { mt.onBlur = fn }

// Conversation returns the rendered conversation.
func (mt *MessageThread) Conversation() chat.Key { return mt.key }

// Update renders the thread. Messages arrive oldest first.
func (mt *MessageThread) Update(v intsync.ThreadView, self string, name NameFunc) {
	mt.key = v.Conversation
	mt.self = self
	mt.title = v.Title
	if mt.title == "" {
		mt.title = v.Conversation.ID
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s ", displayText(mt.title)))

	mt.messages.Clear()
	for _, m := range v.Messages {
		_, _ = fmt.Fprint(mt.messages, mt.line(m, name))
	}
	mt.messages.ScrollToEnd()
	mt.SetTyping(v.PeerTyping)
}

// SetTyping toggles the remote typing indicator.
func (mt *MessageThread) SetTyping(on bool) {
	mt.typing.Clear()
	if on {
		_, _ = fmt.Fprintf(mt.typing, " [%s::i]%s is typing...[-:-:-]", ui.Tag(mt.theme.TypingColor), displayText(mt.title))
	}
}

func (mt *MessageThread) line(m chat.Message, name NameFunc) string {
	if m.Kind == chat.ContentSystem {
		return fmt.Sprintf("[%s::i]* %s *[-:-:-]\n\n", ui.Tag(mt.theme.SystemColor), displayText(m.Payload))
	}

	sender := m.SenderID
	if name != nil {
		sender = name(m.SenderID)
	}
	own := m.SenderID == mt.self
	senderColor := ui.Tag(mt.theme.TableHeaderFg)
	if own {
		senderColor = ui.Tag(mt.theme.OwnMessageColor)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]", senderColor, displayText(sender), formatTimestamp(m.Timestamp))
	if m.ServerID != "" {
		fmt.Fprintf(&b, " [::d]#%s[-:-:-]", displayText(m.ServerID))
	}
	if own {
		glyph := m.Status.Symbol()
		if m.Status == chat.StatusFailed || m.Status == chat.StatusBlocked {
			fmt.Fprintf(&b, " [%s]%s %s[-]", ui.Tag(mt.theme.FailedColor), glyph, m.Status)
		} else if glyph != "" {
			fmt.Fprintf(&b, " [::d]%s[-:-:-]", glyph)
		}
	}
	b.WriteString("\n")
	if m.ReplyToID != "" {
		fmt.Fprintf(&b, "[::d]↪ #%s[-:-:-]\n", displayText(m.ReplyToID))
	}
	b.WriteString(body(m))
	b.WriteString("\n")
	if r := reactions(m.Reactions); r != "" {
		b.WriteString("  ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func body(m chat.Message) string {
	switch m.Kind {
	case chat.ContentSticker, chat.ContentImage, chat.ContentFile:
		return fmt.Sprintf("[::d]%s[-:-:-] %s", tview.Escape("["+string(m.Kind)+"]"), displayText(m.Payload))
	}
	return displayText(m.Payload)
}

// reactions renders emoji with counts in a stable order.
func reactions(r map[string]string) string {
	if len(r) == 0 {
		return ""
	}
	counts := make(map[string]int)
	for _, emoji := range r {
		counts[emoji]++
	}
	var parts []string
	for _, emoji := range slices.Sorted(maps.Keys(counts)) {
		if n := counts[emoji]; n > 1 {
			parts = append(parts, fmt.Sprintf("%s %d", displayText(emoji), n))
		} else {
			parts = append(parts, displayText(emoji))
		}
	}
	return strings.Join(parts, "  ")
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// Text returns the rendered message text without style tags.
func (mt *MessageThread) Text() string {
	return mt.messages.GetText(true)
}
