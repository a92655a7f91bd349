package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// SearchView lists cached messages matching a query.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
	data    []store.SearchResult
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitle(" Results ")
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	sv := &SearchView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
	}
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil {
			sv.onQuery(sv.input.GetText())
		}
	})
	return sv
}

// Name implements Component.
func (sv *SearchView) Name() string { return "Search" }

// Init implements Component.
func (sv *SearchView) Init() {}

// Start implements Component.
func (sv *SearchView) Start() {}

// Stop implements Component.
func (sv *SearchView) Stop() {}

// Hints implements Component.
func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Open"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// Update shows the results for query. conv resolves conversation titles and
// sender resolves author names; either may be nil.
func (sv *SearchView) Update(query string, results []store.SearchResult, conv func(chat.Key) string, sender NameFunc) {
	sv.data = results
	sv.results.Clear()

	headers := []struct {
		text string
		exp  int
	}{{" CONVERSATION", 0}, {" FROM", 0}, {" MESSAGE", 1}, {" TIME", 0}}
	for col, h := range headers {
		sv.results.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetExpansion(h.exp).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	resolve := func(fn func(string) string, id string) string {
		if fn != nil {
			if n := fn(id); n != "" {
				return n
			}
		}
		return id
	}
	for i, r := range results {
		title := r.Conversation.ID
		if conv != nil {
			if n := conv(r.Conversation); n != "" {
				title = n
			}
		}
		cells := []*tview.TableCell{
			tview.NewTableCell(" " + displayText(title)).SetMaxWidth(25),
			tview.NewTableCell(" " + displayText(resolve(sender, r.SenderID))).SetMaxWidth(16),
			tview.NewTableCell(" " + displayText(oneLine(r.Payload))).SetExpansion(1),
			tview.NewTableCell(" " + formatTimestamp(r.Timestamp)).SetMaxWidth(12),
		}
		for col, c := range cells {
			sv.results.SetCell(i+1, col, c.SetTextColor(sv.theme.FgColor))
		}
	}

	switch len(results) {
	case 0:
		sv.results.SetTitle(fmt.Sprintf(" No results for %q ", query))
	default:
		sv.results.SetTitle(fmt.Sprintf(" %d results for %q ", len(results), query))
	}
	if len(results) > 0 {
		sv.results.Select(1, 0)
	}
}

// SelectedResult returns the conversation and message id under the cursor.
func (sv *SearchView) SelectedResult() (chat.Key, string) {
	row, _ := sv.results.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(sv.data) {
		r := sv.data[idx]
		return r.Conversation, r.MessageID
	}
	return chat.Key{}, ""
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}
