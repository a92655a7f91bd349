package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/daemon"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"github.com/matheus3301/chatsync/internal/tui"
)

const lifecycleTimeout = 15 * time.Second

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(name, *debug); err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			fmt.Fprintf(os.Stderr, "profile %q is in use by PID %d (%s); stop it or pick another --profile\n", name, held.PID, held.Mode)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run hosts the engine in-process and drives it from the terminal UI.
func run(name string, debug bool) error {
	var (
		engine  *intsync.Engine
		events  *bus.Bus
		cache   *store.DB
		machine *status.Machine
	)
	app := fx.New(
		daemon.Module(daemon.Params{
			Profile: name,
			Mode:    daemon.ModeTUI,
			Debug:   debug,
		}),
		fx.NopLogger,
		fx.Populate(&engine, &events, &cache, &machine),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	ui := tui.NewApp(tui.Options{
		Profile: name,
		Engine:  engine,
		Bus:     events,
		Cache:   cache,
		Status:  machine,
	})
	runErr := ui.Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer stopCancel()
	return errors.Join(runErr, app.Stop(stopCtx))
}
