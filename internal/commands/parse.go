package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
	"github.com/boddenberg/extrato-ingest-go/internal/ingest"
)

type parseOutput struct {
	File         string               `json:"file"`
	Format       domain.Format        `json:"format"`
	TotalLines   int                  `json:"totalLines"`
	Dropped      int                  `json:"dropped"`
	Transactions []domain.Transaction `json:"transactions"`
	Summary      domain.UploadSummary `json:"summary"`
}

func newParseCommand() *cobra.Command {
	var (
		format          string
		maxTransactions int
		verbose         bool
	)

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a statement file and print the transactions as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.NewNop()
			if verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("creating logger: %w", err)
				}
				logger = l
			}
			limits := ingest.DefaultLimits()
			if maxTransactions > 0 {
				limits.MaxTransactions = maxTransactions
			}
			return runParse(cmd.OutOrStdout(), args[0], format, limits, logger)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "force a format (csv, ofx, qfx, pdf, txt) instead of the file extension")
	cmd.Flags().IntVar(&maxTransactions, "max-transactions", 0, "row ceiling (default 500)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log dropped rows to stderr")

	return cmd
}

func runParse(out io.Writer, path, formatName string, limits ingest.Limits, logger *zap.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := limits.CheckSize(info.Size()); err != nil {
		return err
	}

	allFormats := []domain.Format{domain.FormatCSV, domain.FormatOFX, domain.FormatQFX, domain.FormatPDF, domain.FormatTXT}
	var format domain.Format
	if formatName != "" {
		format, err = ingest.ParseFormatName(formatName, allFormats)
	} else {
		format, err = ingest.DetectAllowed(path, allFormats)
	}
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	res, err := ingest.NewRegistry(ingest.Options{Logger: logger}).Parse(format, data)
	if err != nil {
		return err
	}
	if err := limits.CheckBatch(format, res.Transactions); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(parseOutput{
		File:         filepath.Base(path),
		Format:       format,
		TotalLines:   res.TotalLines,
		Dropped:      res.Dropped,
		Transactions: res.Transactions,
		Summary:      ingest.Summarize(res.Transactions),
	})
}
