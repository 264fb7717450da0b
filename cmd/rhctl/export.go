package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/septivank/running-hours-ledger/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exportFlags struct {
	format string
	out    string
	vessel string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the running-hours ledger with utilization rates",
	Example: `  rhctl export --format csv > ledger.csv
  rhctl export --format xlsx --out ledger.xlsx --vessel "MV Aurora"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		write, err := exportWriter(exportFlags.format)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		components, err := a.repo.ListComponents(cmd.Context(), exportFlags.vessel)
		if err != nil {
			return err
		}
		rows := report.BuildSnapshot(cmd.Context(), components, a.ledger)

		if exportFlags.out == "" || exportFlags.out == "-" {
			return write(os.Stdout, rows)
		}

		file, err := os.Create(exportFlags.out)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		if err := write(file, rows); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("failed to close export file: %w", err)
		}
		a.logger.Info("ledger exported",
			zap.String("file", exportFlags.out),
			zap.String("format", exportFlags.format),
			zap.Int("rows", len(rows)),
		)
		return nil
	},
}

func exportWriter(format string) (func(io.Writer, []report.SnapshotRow) error, error) {
	switch strings.ToLower(format) {
	case "csv":
		return report.WriteCSV, nil
	case "xlsx":
		return report.WriteXLSX, nil
	default:
		return nil, fmt.Errorf("unknown export format '%s' (want csv or xlsx)", format)
	}
}

func init() {
	fl := exportCmd.Flags()
	fl.StringVar(&exportFlags.format, "format", "csv", "export format (csv, xlsx)")
	fl.StringVar(&exportFlags.out, "out", "", "output file (default stdout)")
	fl.StringVar(&exportFlags.vessel, "vessel", "", "only export components of this vessel")
	rootCmd.AddCommand(exportCmd)
}
