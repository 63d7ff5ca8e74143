package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pipegen/internal/diag"
	"pipegen/internal/engine"
)

var (
	warmUI     string
	warmReport string
)

func init() {
	warmCmd.Flags().StringVar(&warmUI, "ui", "auto", "progress view (auto|on|off)")
	warmCmd.Flags().StringVar(&warmReport, "report", "full", "failure report (full|short)")
}

var warmCmd = &cobra.Command{
	Use:   "warm [operation...]",
	Short: "Build operations ahead of their first execution",
	Long:  `warm builds the named operations, or all of them, concurrently and reports every failure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := readUIMode(warmUI)
		if err != nil {
			return err
		}
		if warmReport != "full" && warmReport != "short" {
			return fmt.Errorf("invalid --report value %q (expected full|short)", warmReport)
		}
		useTUI := shouldUseTUI(mode, os.Stdout) && !quiet(cmd)

		events := make(chan engine.Event, 256)
		out := cmd.OutOrStdout()
		var sink engine.ProgressSink
		switch {
		case useTUI:
			sink = engine.SinkFunc(func(ev engine.Event) { events <- ev })
		case quiet(cmd):
			sink = engine.SinkFunc(func(engine.Event) {})
		default:
			var mu sync.Mutex
			sink = engine.SinkFunc(func(ev engine.Event) {
				if !ev.Done() {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				printDone(out, ev)
			})
		}

		app, err := openApp(cmd, engine.WithSink(sink))
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			names = app.Engine.Operations()
		}
		for _, name := range names {
			if _, ok := app.Engine.Operation(name); !ok {
				return fmt.Errorf("%w: %q", engine.ErrUnknownOperation, name)
			}
		}

		if useTUI {
			err = warmWithUI(cmd.Context(), "warming operations", app.Engine, names, events)
		} else {
			err = app.Engine.Warm(cmd.Context(), names...)
		}
		if err != nil && !errors.Is(err, engine.ErrBuild) {
			return err
		}

		failed := 0
		for _, name := range slices.Sorted(slices.Values(names)) {
			b, err := app.Engine.Build(cmd.Context(), name)
			if err != nil {
				return err
			}
			if timingsEnabled(cmd) {
				_ = b.Timings.Write(cmd.ErrOrStderr(), name)
			}
			if !b.Failed() {
				continue
			}
			failed++
			if warmReport == "short" {
				fmt.Fprintln(cmd.ErrOrStderr(), diag.FormatShort(b.Err.Diagnostics, false))
			} else {
				reportBuildFailure(cmd.ErrOrStderr(), b.Err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d operations failed to build", failed, len(names))
		}
		return nil
	},
}

func printDone(out io.Writer, ev engine.Event) {
	status := fmt.Sprintf("%-8s", ev.Status)
	switch ev.Status {
	case engine.StatusFailed:
		status = color.New(color.FgRed).Sprint(status)
	case engine.StatusCached:
		status = color.New(color.FgCyan).Sprint(status)
	default:
		status = color.New(color.FgGreen).Sprint(status)
	}
	fmt.Fprintf(out, "%s %s %s\n", status, ev.Operation, ev.Elapsed.Round(time.Microsecond))
}
