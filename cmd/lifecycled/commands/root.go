package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/lifecycle/version"
)

type rootOptions struct {
	configFile string
	envFile    string
}

// NewRootCommand builds the lifecycled command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   serviceName,
		Short: "lifecycled - component lifecycle daemon",
		Long: `lifecycled runs a registry of lifecycle-managed components. It exposes
an admin API to start, stop, pause and resume them, streams lifecycle
events and reloads component settings when its config file changes.`,
		Version:       version.Current().Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: search ./cmd/lifecycled, ./config, .)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", ".env file to load before binding LIFECYCLED_* variables")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newVersionCommand())
	root.AddCommand(newTokenCommand(opts))
	return root
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
