package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boddenberg/extrato-ingest-go/internal/ingest"
)

func newCategorizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <description>...",
		Short: "Print the category the default rules assign to each description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categorizer := ingest.NewDefaultCategorizer()
			out := cmd.OutOrStdout()
			for _, desc := range args {
				desc = strings.TrimSpace(desc)
				if _, err := fmt.Fprintf(out, "%s\t%s\n", categorizer.Categorize(desc), desc); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
