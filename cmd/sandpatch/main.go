package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/sokinpui/sandpatch/cli"
	"github.com/sokinpui/sandpatch/internal/app"
	"github.com/sokinpui/sandpatch/internal/tui"
	"github.com/sokinpui/sandpatch/internal/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := cli.ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Serve != "" {
		if err := a.Serve(ctx); err != nil {
			ui.Error("Error: %v", err)
			return 1
		}
		return 0
	}

	// Modes that print to stdout, and plain output on request, skip the TUI.
	if cfg.PrintsToStdout() || cfg.NoAnimation {
		return runPlain(ctx, a, cfg)
	}

	model := tui.New(ctx, a)
	p := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	a.SetProgress(func(done, total int) {
		p.Send(tui.ProgressMsg{Done: done, Total: total})
	})
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return 1
	}
	if m, ok := final.(tui.Model); ok && m.Failed() {
		return 1
	}
	return 0
}

func runPlain(ctx context.Context, a *app.App, cfg *cli.Config) int {
	if cfg.PrintsToStdout() {
		ui.SetQuiet(true)
	} else {
		var bar *ui.ProgressBar
		a.SetProgress(func(done, total int) {
			if total == 0 {
				return
			}
			if bar == nil {
				bar = ui.NewProgressBar(total, "Applying")
				bar.Start()
			}
			bar.Set(done)
			if done == total {
				bar.Finish()
				bar = nil
			}
		})
	}

	summary, err := a.Execute(ctx)
	if err != nil {
		ui.Error("Error: %v", err)
		var detailed *app.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		return 1
	}
	ui.PrintSummary(summary)
	if len(summary.Failed) > 0 {
		return 1
	}
	return 0
}
