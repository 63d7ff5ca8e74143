package main

import (
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pipegen/internal/demo"
	"pipegen/internal/engine"
)

// openApp loads the config for cmd and builds the ledger application on it.
func openApp(cmd *cobra.Command, opts ...engine.Option) (*demo.App, error) {
	cfg, err := loadConfigFor(cmd)
	if err != nil {
		return nil, err
	}
	return demo.New(cfg.Engine, opts...)
}

func quiet(cmd *cobra.Command) bool {
	v, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return v
}

func timingsEnabled(cmd *cobra.Command) bool {
	v, _ := cmd.Root().PersistentFlags().GetBool("timings")
	return v
}

// reportBuildFailure prints the report of a failed build. Nil is ignored.
func reportBuildFailure(out io.Writer, be *engine.BuildError) {
	if be == nil {
		return
	}
	_ = be.WriteReport(out, !color.NoColor)
}
