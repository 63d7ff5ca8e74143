package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pipegen/internal/compile"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the durable compile cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List cached compile records, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := openCache(cmd)
		if err != nil {
			return err
		}
		records, err := d.Records()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			if !quiet(cmd) {
				fmt.Fprintln(cmd.OutOrStdout(), "cache is empty")
			}
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), recordTable(records))
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every cached compile record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := openCache(cmd)
		if err != nil {
			return err
		}
		if err := d.Clean(); err != nil {
			return fmt.Errorf("failed to clean %q: %w", d.Dir, err)
		}
		if !quiet(cmd) {
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", d.Dir)
		}
		return nil
	},
}

var cellStyle = lipgloss.NewStyle().PaddingRight(2)

// recordTable renders records as borderless aligned columns.
func recordTable(records []compile.Record) string {
	t := table.New().
		BorderTop(false).BorderBottom(false).BorderLeft(false).BorderRight(false).
		BorderColumn(false).BorderHeader(false).
		StyleFunc(func(_, _ int) lipgloss.Style { return cellStyle }).
		Headers("KEY", "UNIT", "BACKEND", "OPT", "STATE", "CREATED")
	for _, rec := range records {
		state := color.New(color.FgGreen).Sprint("ok")
		if rec.Broken {
			state = color.New(color.FgRed).Sprintf("broken (%d)", len(rec.Diagnostics))
		}
		key := rec.Key
		if len(key) > 12 {
			key = key[:12]
		}
		t.Row(key, rec.Unit, rec.Backend, rec.Optimization, state, rec.Created.Local().Format(time.DateTime))
	}
	return t.Render()
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
}

// openCache opens the durable cache named by the config. The backend is not
// needed to read or clear records.
func openCache(cmd *cobra.Command) (*compile.Durable, error) {
	cfg, err := loadConfigFor(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Engine.Path == "" {
		return nil, errors.New("no durable cache configured (set [engine].path)")
	}
	return compile.NewDurable(cfg.Engine.Path, cfg.Engine.App, nil), nil
}
