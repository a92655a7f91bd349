package ui

import "fmt"

// MenuHint is one key shown in the header menu.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool
}

func (h MenuHint) String() string {
	return fmt.Sprintf("<%s> %s", h.Key, h.Description)
}

// Component is implemented by every page the app can push.
type Component interface {
	Name() string
	Init()
	Start()
	Stop()
	Hints() []MenuHint
}
