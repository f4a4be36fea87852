package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/lifecycle/version"
)

func newVersionCommand() *cobra.Command {
	var (
		asJSON bool
		deps   bool
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Current()
			out := cmd.OutOrStdout()
			if asJSON {
				if !deps {
					info.Dependencies = nil
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "%s %s\n", serviceName, info)
			if info.GoVersion != "" {
				fmt.Fprintf(out, "go: %s\n", info.GoVersion)
			}
			if deps {
				for _, d := range info.Dependencies {
					fmt.Fprintf(out, "  %s %s\n", d.Path, d.Version)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&deps, "deps", false, "include linked module versions")
	return cmd
}
