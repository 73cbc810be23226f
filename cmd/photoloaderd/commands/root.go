// Package commands implements the photoloaderd CLI.
package commands

import "github.com/spf13/cobra"

// NewRootCommand builds the photoloaderd command tree.
func NewRootCommand(version, commit string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "photoloaderd",
		Short:         "Asynchronous photo loading and caching daemon",
		Long:          "photoloaderd warms and serves a two-tier photo cache backed by a pluggable photo source.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: $XDG_CONFIG_HOME/photoloader/config.yaml)")

	root.AddCommand(
		newStartCommand(&configPath),
		newInitCommand(&configPath),
		newVersionCommand(version, commit),
	)
	return root
}
