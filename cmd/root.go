package cmd

import (
	"github.com/spf13/cobra"
	"material-pipeline/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "material-pipeline",
		Short:        "study material generation and course file uploads",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(server(config), worker(config), migrate(config))
	return rootCmd
}
