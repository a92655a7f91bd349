package keys

import (
	"github.com/elliotchance/orderedmap/v3"
	"github.com/gdamore/tcell/v2"
)

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

type scope = orderedmap.OrderedMap[string, *Action]

// Registry holds keybindings organized by scope, in registration order.
type Registry struct {
	global *scope
	views  map[string]*scope
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{
		global: orderedmap.NewOrderedMap[string, *Action](),
		views:  make(map[string]*scope),
	}
}

// AddGlobal registers a global keybinding. Re-adding a name replaces it in place.
func (r *Registry) AddGlobal(name string, action *Action) {
	r.global.Set(name, action)
}

// AddView registers a view-specific keybinding.
func (r *Registry) AddView(view, name string, action *Action) {
	s, ok := r.views[view]
	if !ok {
		s = orderedmap.NewOrderedMap[string, *Action]()
		r.views[view] = s
	}
	s.Set(name, action)
}

// Hints returns visible keybinding descriptions for a view, view bindings first.
func (r *Registry) Hints(view string) []string {
	var hints []string
	if s, ok := r.views[view]; ok {
		for a := range s.Values() {
			if a.Visible {
				hints = append(hints, a.Description)
			}
		}
	}
	for a := range r.global.Values() {
		if a.Visible {
			hints = append(hints, a.Description)
		}
	}
	return hints
}

// HandleEvent dispatches a key event to the first matching action, checking
// view bindings before global ones. Returns true if a handler ran.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	if s, ok := r.views[view]; ok {
		for a := range s.Values() {
			if a.Matches(ev) {
				a.Handler()
				return true
			}
		}
	}
	for a := range r.global.Values() {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
