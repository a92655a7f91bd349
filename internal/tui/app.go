package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"github.com/matheus3301/chatsync/internal/tui/keys"
	"github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/matheus3301/chatsync/internal/tui/views"
)

// Page names.
const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageDetails       = "details"
	pageRequests      = "requests"
	pageSearch        = "search"
	pageHelp          = "help"
)

const (
	searchLimit = 50
	opTimeout   = 10 * time.Second
	toastWidth  = 42
)

// Engine is the part of the sync engine the TUI drives.
type Engine interface {
	Snapshot(ctx context.Context) (intsync.Snapshot, error)
	Select(ctx context.Context, key chat.Key) error
	Deselect(ctx context.Context) error
	SendText(ctx context.Context, text string) (string, error)
	SendSticker(ctx context.Context, url string) (string, error)
	SendFile(ctx context.Context, url string) (string, error)
	SendReply(ctx context.Context, replyTo, text string) (string, error)
	React(ctx context.Context, messageID, emoji string) (string, error)
	RetryLast(ctx context.Context) (string, error)
	Input(ctx context.Context) error
	Blur(ctx context.Context) error
	CloseToast(ctx context.Context, id string) error
	ClickToast(ctx context.Context, id string) error
	SetNotificationPolicy(ctx context.Context, policy notify.Policy) error
	AcceptFriend(ctx context.Context, userID string) error
	RejectFriend(ctx context.Context, userID string) error
	RequestFriend(ctx context.Context, userID string) error
	Block(ctx context.Context, userID string) error
	Unblock(ctx context.Context, userID string) error
}

// Searcher queries cached messages.
type Searcher interface {
	SearchMessages(query string, key chat.Key, limit int) ([]store.SearchResult, error)
}

// StatusSource reports the current connection state.
type StatusSource interface {
	Current() status.State
}

// Options configures the TUI.
type Options struct {
	Profile string
	Engine  Engine
	Bus     *bus.Bus
	Cache   Searcher
	Status  StatusSource
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	opts     Options
	vm       *model.ViewModel
	registry *keys.Registry
	flash    *ui.FlashModel
	started  time.Time

	pages      *ui.Pages
	components map[string]ui.Component
	crumbs     *ui.Crumbs
	menu       *ui.Menu
	info       *ui.ProfileInfo
	logo       *ui.Logo
	flashBar   *ui.FlashBar
	prompt     *ui.Prompt
	statusBar  *views.StatusBar
	body       *tview.Flex
	root       *tview.Flex

	conversations *views.ConversationList
	thread        *views.MessageThread
	details       *views.ConversationInfo
	requests      *views.FriendRequests
	search        *views.SearchView
	help          *views.HelpView
	toasts        *views.ToastStack

	// followed is the conversation the thread page shows.
	followed chat.Key

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		opts:     opts,
		vm:       model.NewViewModel(),
		registry: keys.NewRegistry(),
		flash:    ui.NewFlashModel(),
		started:  time.Now(),

		pages:     ui.NewPages(),
		crumbs:    ui.NewCrumbs(theme),
		menu:      ui.NewMenu(theme),
		info:      ui.NewProfileInfo(theme),
		logo:      ui.NewLogo(theme),
		flashBar:  ui.NewFlashBar(theme),
		prompt:    ui.NewPrompt(theme),
		statusBar: views.NewStatusBar(),

		conversations: views.NewConversationList(theme),
		thread:        views.NewMessageThread(theme),
		details:       views.NewConversationInfo(theme),
		requests:      views.NewFriendRequests(theme),
		search:        views.NewSearchView(theme),
		help:          views.NewHelpView(theme),
		toasts:        views.NewToastStack(theme),

		ctx:    ctx,
		cancel: cancel,
	}
	a.components = map[string]ui.Component{
		pageConversations: a.conversations,
		pageThread:        a.thread,
		pageDetails:       a.details,
		pageRequests:      a.requests,
		pageSearch:        a.search,
		pageHelp:          a.help,
	}

	a.statusBar.SetProfile(opts.Profile)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.push(pageHelp) },
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: "::command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal("toast-open", &keys.Action{
		Rune: 't', Key: tcell.KeyRune,
		Description: "t:open toast",
		Handler:     func() { a.toastAction(a.opts.Engine.ClickToast) },
	})
	a.registry.AddGlobal("toast-close", &keys.Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "x:dismiss toast",
		Handler:     func() { a.toastAction(a.opts.Engine.CloseToast) },
	})

	a.registry.AddView(pageConversations, "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageConversations, "requests", &keys.Action{
		Rune: 'f', Key: tcell.KeyRune,
		Description: "f:requests", Visible: true,
		Handler: func() { a.push(pageRequests) },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageConversations, "jump-"+strconv.Itoa(n), &keys.Action{
			Rune: rune('0' + n), Key: tcell.KeyRune,
			Handler: func() {
				if key := a.conversations.KeyByIndex(n); !key.IsZero() {
					a.open(key)
				}
			},
		})
	}

	a.registry.AddView(pageThread, "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageThread, "retry", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:retry", Visible: true,
		Handler: func() { a.retryLast() },
	})
	a.registry.AddView(pageThread, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:details", Visible: true,
		Handler: func() { a.showDetails() },
	})

	a.registry.AddView(pageRequests, "accept", &keys.Action{
		Rune: 'a', Key: tcell.KeyRune,
		Description: "a:accept", Visible: true,
		Handler: func() {
			if id, ok := a.requests.Selected(); ok {
				a.run("accept", func(ctx context.Context) error { return a.opts.Engine.AcceptFriend(ctx, id) })
			}
		},
	})
	a.registry.AddView(pageRequests, "reject", &keys.Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "x:reject", Visible: true,
		Handler: func() {
			if id, ok := a.requests.Selected(); ok {
				a.run("reject", func(ctx context.Context) error { return a.opts.Engine.RejectFriend(ctx, id) })
			}
		},
	})
}

func (a *App) setupCallbacks() {
	a.conversations.SetSelectedFunc(func(row, _ int) {
		if key := a.conversations.KeyByIndex(row); !key.IsZero() {
			a.open(key)
		}
	})

	a.thread.SetOnSend(a.submitComposer)
	a.thread.SetOnInput(func() {
		a.async(func(ctx context.Context) error { return a.opts.Engine.Input(ctx) })
	})
	a.thread.SetOnBlur(func() {
		a.async(func(ctx context.Context) error { return a.opts.Engine.Blur(ctx) })
	})

	a.search.SetOnQuery(a.runSearch)
	a.search.Results().SetSelectedFunc(func(_, _ int) {
		if key, _ := a.search.SelectedResult(); !key.IsZero() {
			a.open(key)
		}
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.handleCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.conversations.SetFilter(text)
		case ui.PromptSearch:
			a.runSearch(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		if c, ok := a.components[a.pages.Current()]; ok {
			a.menu.Update(c.Hints())
		}
	})
}

func (a *App) setupLayout() {
	for name, c := range a.components {
		a.pages.AddPage(name, c.(tview.Primitive), true, false)
	}

	header := tview.NewFlex().
		AddItem(a.info, 0, 1, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 26, 0, false)

	a.body = tview.NewFlex().
		AddItem(a.pages, 0, 1, true).
		AddItem(a.toasts, 0, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.body, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.pages.Reset(pageConversations)
	a.app.SetFocus(a.conversations)

	a.app.SetInputCapture(a.captureKey)
}

func (a *App) captureKey(event *tcell.EventKey) *tcell.EventKey {
	focused := a.app.GetFocus()
	if event.Key() == tcell.KeyEscape {
		switch focused {
		case a.thread.Composer():
			a.app.SetFocus(a.thread.Messages())
			return nil
		case a.search.Input():
			a.back()
			return nil
		}
	}
	// Text inputs own every other key.
	if _, ok := focused.(*tview.InputField); ok {
		return event
	}

	if event.Key() == tcell.KeyEscape {
		if a.pages.Current() == pageConversations {
			a.conversations.ClearFilter()
			return nil
		}
		a.back()
		return nil
	}

	if a.registry.HandleEvent(a.pages.Current(), event) {
		return nil
	}
	return event
}

func (a *App) push(page string) {
	if a.pages.Current() == page {
		return
	}
	a.pages.Push(page)
	a.focusPage(page)
}

func (a *App) back() {
	if a.pages.Depth() <= 1 {
		return
	}
	if a.pages.Pop() == pageThread {
		a.followed = chat.Key{}
		a.async(func(ctx context.Context) error { return a.opts.Engine.Deselect(ctx) })
	}
	a.focusPage(a.pages.Current())
}

func (a *App) focusPage(page string) {
	switch page {
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	default:
		if p, ok := a.components[page].(tview.Primitive); ok {
			a.app.SetFocus(p)
		}
	}
}

// open shows the thread page for key and asks the engine to select it.
func (a *App) open(key chat.Key) {
	a.followed = key
	a.pages.Reset(pageConversations)
	a.pages.Push(pageThread)
	a.focusPage(pageThread)
	a.async(func(ctx context.Context) error { return a.opts.Engine.Select(ctx, key) })
}

func (a *App) showDetails() {
	key := a.thread.Conversation()
	entry, ok := a.vm.Conversation(key)
	if !ok {
		return
	}
	var contact *chat.Contact
	if key.Kind == chat.KindDirect {
		if c, ok := a.vm.Contact(key.ID); ok {
			contact = &c
		}
	}
	a.details.Update(entry, contact)
	a.push(pageDetails)
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusPage(a.pages.Current())
}

func (a *App) submitComposer(text string) {
	cmd, literal, isCommand := ParseComposer(text)
	if !isCommand {
		a.run("send", func(ctx context.Context) error {
			_, err := a.opts.Engine.SendText(ctx, literal)
			return err
		})
		return
	}

	switch cmd.Name {
	case "retry":
		a.retryLast()
	case "react":
		target, ok := a.vm.LastIncoming()
		if !ok || cmd.Args == "" {
			a.flash.Warn("nothing to react to")
			return
		}
		a.run("react", func(ctx context.Context) error {
			_, err := a.opts.Engine.React(ctx, target.ServerID, cmd.Args)
			return err
		})
	case "reply":
		target, text, ok := cmd.Reply()
		if !ok {
			a.flash.Warn("usage: /reply <message id> <text>")
			return
		}
		a.run("reply", func(ctx context.Context) error {
			_, err := a.opts.Engine.SendReply(ctx, target, text)
			return err
		})
	case "sticker":
		a.run("sticker", func(ctx context.Context) error {
			_, err := a.opts.Engine.SendSticker(ctx, cmd.Args)
			return err
		})
	case "file":
		a.run("file", func(ctx context.Context) error {
			_, err := a.opts.Engine.SendFile(ctx, cmd.Args)
			return err
		})
	case "mode":
		a.setPolicy(cmd.Args)
	default:
		a.flash.Warn("unknown command: /" + cmd.Name)
	}
}

func (a *App) retryLast() {
	if _, ok := a.vm.LastFailed(); !ok {
		a.flash.Info("no failed message")
		return
	}
	a.run("retry", func(ctx context.Context) error {
		_, err := a.opts.Engine.RetryLast(ctx)
		return err
	})
}

func (a *App) setPolicy(arg string) {
	policy := notify.ParsePolicy(arg)
	a.run("mode", func(ctx context.Context) error {
		if err := a.opts.Engine.SetNotificationPolicy(ctx, policy); err != nil {
			return err
		}
		a.flash.Info("notifications: " + string(policy))
		return nil
	})
}

func (a *App) handleCommand(cmd Command) {
	user := func(op func(context.Context, string) error) {
		if cmd.Args == "" {
			a.flash.Warn(fmt.Sprintf(":%s needs a user id", cmd.Name))
			return
		}
		a.run(cmd.Name, func(ctx context.Context) error { return op(ctx, cmd.Args) })
	}

	switch cmd.Name {
	case "q", "quit":
		a.app.Stop()
	case "search":
		a.push(pageSearch)
		if cmd.Args != "" {
			a.search.Input().SetText(cmd.Args)
			a.runSearch(cmd.Args)
		}
	case "chat", "open":
		a.openByName(cmd.Args)
	case "accept":
		user(a.opts.Engine.AcceptFriend)
	case "reject":
		user(a.opts.Engine.RejectFriend)
	case "friend":
		user(a.opts.Engine.RequestFriend)
	case "block":
		user(a.opts.Engine.Block)
	case "unblock":
		user(a.opts.Engine.Unblock)
	case "mode":
		a.setPolicy(cmd.Args)
	case "requests":
		a.push(pageRequests)
	case "help":
		a.push(pageHelp)
	default:
		a.flash.Warn("unknown command: " + cmd.Name)
	}
}

func (a *App) openByName(name string) {
	if key, ok := chat.ParseKey(name); ok {
		a.open(key)
		return
	}
	a.conversations.SetFilter(name)
	if key := a.conversations.KeyByIndex(1); !key.IsZero() {
		a.conversations.ClearFilter()
		a.open(key)
		return
	}
	a.flash.Warn("no conversation matches " + name)
}

func (a *App) runSearch(query string) {
	if query == "" || a.opts.Cache == nil {
		return
	}
	go func() {
		results, err := a.opts.Cache.SearchMessages(query, chat.Key{}, searchLimit)
		if err != nil {
			a.flash.Err(fmt.Errorf("search: %w", err))
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.search.Update(query, results, a.conversationName, a.vm.SenderName)
			a.push(pageSearch)
			a.app.SetFocus(a.search.Results())
		})
	}()
}

func (a *App) conversationName(key chat.Key) string {
	if e, ok := a.vm.Conversation(key); ok && e.DisplayName != "" {
		return e.DisplayName
	}
	return key.String()
}

func (a *App) toastAction(fn func(context.Context, string) error) {
	t, ok := a.toasts.Newest()
	if !ok {
		return
	}
	a.async(func(ctx context.Context) error { return fn(ctx, t.ID) })
}

// run calls an engine operation off the UI goroutine and flashes failures.
func (a *App) run(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, opTimeout)
		defer cancel()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.flash.Err(fmt.Errorf("%s: %w", what, err))
		}
	}()
}

// async is run for operations whose failures are not worth showing.
func (a *App) async(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, opTimeout)
		defer cancel()
		_ = fn(ctx)
	}()
}

// render copies the view model into the widgets. It runs on the UI goroutine.
func (a *App) render() {
	a.conversations.Update(a.vm.Conversations())

	tv := a.vm.Thread()
	if !tv.Conversation.IsZero() && tv.Conversation != a.followed {
		// Opened by the engine, e.g. a toast click.
		a.followed = tv.Conversation
		a.pages.Reset(pageConversations)
		a.pages.Push(pageThread)
		a.focusPage(pageThread)
	}
	if tv.Conversation == a.followed && !tv.Conversation.IsZero() {
		a.thread.Update(tv, a.vm.Self(), a.vm.SenderName)
	}

	toasts := a.vm.Toasts()
	a.toasts.Update(toasts)
	width := 0
	if len(toasts) > 0 {
		width = toastWidth
	}
	a.body.ResizeItem(a.toasts, width, 0)

	a.requests.Update(a.vm.FriendRequests())

	st := a.vm.Status()
	a.statusBar.SetStatus(st)
	a.statusBar.SetCounters(a.vm.Unread(), a.vm.Pending())
	typing := ""
	if tv.PeerTyping {
		typing = a.thread.Name()
	}
	a.statusBar.SetTyping(typing)
	a.renderInfo(st)
}

func (a *App) renderInfo(st status.State) {
	a.info.Update(&ui.ProfileData{
		Profile:       a.opts.Profile,
		UserID:        a.vm.Self(),
		Status:        string(st),
		Conversations: len(a.vm.Conversations()),
		Unread:        a.vm.Unread(),
		Pending:       a.vm.Pending(),
		Uptime:        time.Since(a.started),
	})
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(a.render)
		case <-a.flash.Changed():
			a.app.QueueUpdateDraw(func() { a.flashBar.Render(a.flash.Current()) })
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.flashBar.Render(a.flash.Current())
				a.renderInfo(a.vm.Status())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

// Run seeds the view model, starts following the bus and blocks until the
// user quits.
func (a *App) Run() error {
	a.vm.Watch(a.ctx, a.opts.Bus)
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, opTimeout)
		defer cancel()
		snap, err := a.opts.Engine.Snapshot(ctx)
		if err != nil {
			a.flash.Err(fmt.Errorf("load: %w", err))
		} else {
			a.vm.Seed(snap)
		}
		if a.opts.Status != nil {
			a.vm.SetStatus(a.opts.Status.Current())
		}
		a.app.QueueUpdateDraw(a.render)
		a.refreshLoop()
	}()

	defer a.cancel()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
