// Package commands implements the extrato command-line tool for working
// with statements offline.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "extrato",
		Short: "Parse, categorize and inspect bank statements offline",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newCategorizeCommand())
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}
