package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pipegen/internal/version"
)

func init() {
	f := versionCmd.Flags()
	f.Bool("hash", false, "include the git commit")
	f.Bool("message", false, "include the git commit message")
	f.Bool("date", false, "include the build date")
	f.Bool("full", false, "include all build metadata")
	f.String("format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show pipegen build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		info := selectVersionFields(cmd, version.Current())
		switch format {
		case "pretty":
			writeVersion(cmd.OutOrStdout(), info)
			return nil
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
		}
	},
}

// selectVersionFields blanks what was not asked for and marks requested but
// unstamped fields as unknown.
func selectVersionFields(cmd *cobra.Command, info version.Info) version.Info {
	full, _ := cmd.Flags().GetBool("full")
	pick := func(flag, value string) string {
		on, _ := cmd.Flags().GetBool(flag)
		switch {
		case !on && !full:
			return ""
		case value == "":
			return "unknown"
		default:
			return value
		}
	}
	info.Commit = pick("hash", info.Commit)
	info.Message = pick("message", info.Message)
	info.Date = pick("date", info.Date)
	return info
}

func writeVersion(out io.Writer, info version.Info) {
	fmt.Fprintf(out, "pipegen %s (%s)\n", version.Styled(info.Version), info.Go)
	for _, row := range [][2]string{{"commit", info.Commit}, {"message", info.Message}, {"built", info.Date}} {
		if row[1] != "" {
			fmt.Fprintf(out, "%-8s %s\n", row[0]+":", row[1])
		}
	}
}
