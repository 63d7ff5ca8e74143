package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pipegen/internal/engine"
)

var previewCmd = &cobra.Command{
	Use:   "preview <operation>",
	Short: "Print the generated source of an operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		src, err := app.Engine.Preview(cmd.Context(), args[0])
		if err != nil {
			var be *engine.BuildError
			if errors.As(err, &be) {
				reportBuildFailure(cmd.ErrOrStderr(), be)
				return fmt.Errorf("operation %s failed to generate", args[0])
			}
			return err
		}
		_, err = cmd.OutOrStdout().Write(src)
		return err
	},
}
