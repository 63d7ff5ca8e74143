package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pipegen/internal/demo/ledger"
	"pipegen/runtime/rt"
)

var runCmd = &cobra.Command{
	Use:   "run <operation> [key=value...]",
	Short: "Build an operation and execute it once",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		name := args[0]
		values, err := app.Values(name, args[1:])
		if err != nil {
			return err
		}
		b, err := app.Engine.Build(cmd.Context(), name)
		if err != nil {
			return err
		}
		if timingsEnabled(cmd) {
			_ = b.Timings.Write(cmd.ErrOrStderr(), name)
		}
		if b.Failed() {
			reportBuildFailure(cmd.ErrOrStderr(), b.Err)
			return fmt.Errorf("operation %s failed to build", name)
		}
		result, err := b.Executor.Execute(cmd.Context(), app.Context(values))
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

func printResult(out io.Writer, result any) {
	if rt.IsNoResult(result) {
		fmt.Fprintln(out, color.New(color.Faint).Sprint("(no result)"))
		return
	}
	switch v := result.(type) {
	case error:
		fmt.Fprintf(out, "%s %v\n", color.New(color.FgYellow).Sprint("invalid:"), v)
	case ledger.Status:
		fmt.Fprintf(out, "%s %s\n", color.New(color.FgYellow).Sprint("status:"), string(v))
	default:
		fmt.Fprintf(out, "%+v\n", v)
	}
}
