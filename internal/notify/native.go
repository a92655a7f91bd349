package notify

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// ErrNoNotifier is returned by NewDesktop when notify-send is not installed.
var ErrNoNotifier = errors.New("notify-send not found")

// Desktop raises freedesktop notifications through notify-send.
type Desktop struct {
	path    string
	appName string
	timeout time.Duration
}

// NewDesktop locates notify-send on PATH.
func NewDesktop(appName string) (*Desktop, error) {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return nil, ErrNoNotifier
	}
	return &Desktop{path: path, appName: appName, timeout: 2 * time.Second}, nil
}

// Notify implements SystemNotifier.
func (d *Desktop) Notify(title, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	args := []string{"--app-name", d.appName, "--", title, body}
	return exec.CommandContext(ctx, d.path, args...).Run()
}
