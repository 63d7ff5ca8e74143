package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pipegen/internal/types"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the registered operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		tbl := app.Engine.Types()
		out := cmd.OutOrStdout()
		bold := color.New(color.Bold)
		for _, name := range app.Engine.Operations() {
			op, _ := app.Engine.Operation(name)
			props := make([]string, 0, len(op.Properties))
			for _, p := range op.Properties {
				props = append(props, p.Name+" "+tbl.String(p.Type))
			}
			result := "any"
			if op.Result != types.NoTypeID {
				result = tbl.String(op.Result)
			}
			fmt.Fprintf(out, "%s(%s) %s\n", bold.Sprint(name), strings.Join(props, ", "), result)
		}
		return nil
	},
}
