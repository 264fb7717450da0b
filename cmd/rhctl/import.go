package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/septivank/running-hours-ledger/internal/ledger"
	"github.com/septivank/running-hours-ledger/internal/report"
	"github.com/spf13/cobra"
)

var importFlags struct {
	file   string
	mode   string
	tz     string
	user   string
	dryRun bool
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply a bulk running-hours update from CSV",
	Long: `Reads rows with the columns component_id,value,meter_replaced,
old_meter_final,new_meter_start,comments and applies them with one shared
update date. Every row is checked first; nothing is saved while any row fails.
Rows with a blank value are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := importFlags
		mode, err := ledger.ParseMode(f.mode)
		if err != nil {
			return err
		}

		file, err := os.Open(f.file)
		if err != nil {
			return fmt.Errorf("failed to open bulk file: %w", err)
		}
		rows, err := report.ReadBulkCSV(file)
		file.Close()
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		req := ledger.BulkRequest{
			Mode:     mode,
			Timezone: a.timezoneOr(f.tz),
			UserID:   userOr(f.user),
			Rows:     rows,
		}

		checked := a.ledger.ValidateBulk(cmd.Context(), req)
		if checked.Blocked() {
			if err := printBulkReport(os.Stdout, checked); err != nil {
				return err
			}
			return fmt.Errorf("%d of %d rows failed validation; correct or remove them before saving", checked.Failed, len(rows))
		}
		if f.dryRun {
			return printBulkReport(os.Stdout, checked)
		}

		result := a.ledger.ApplyBulkUpdate(cmd.Context(), req)
		if err := printBulkReport(os.Stdout, result); err != nil {
			return err
		}
		if result.Failed > 0 || result.Cancelled > 0 {
			return fmt.Errorf("%d rows failed and %d were cancelled while saving", result.Failed, result.Cancelled)
		}
		return nil
	},
}

func init() {
	fl := importCmd.Flags()
	fl.StringVar(&importFlags.file, "file", "", "bulk update CSV file")
	fl.StringVar(&importFlags.mode, "mode", ledger.ModeSetTotal.String(), "update mode (setTotal, addDelta)")
	fl.StringVar(&importFlags.tz, "tz", "", "vessel timezone (default LEDGER_DEFAULT_TIMEZONE)")
	fl.StringVar(&importFlags.user, "user", "", "user recorded on the audits (default $USER)")
	fl.BoolVar(&importFlags.dryRun, "dry-run", false, "check every row without saving")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

type bulkRowJSON struct {
	Row          int     `json:"row"`
	ComponentID  string  `json:"component_id"`
	Status       string  `json:"status"`
	Kind         string  `json:"kind,omitempty"`
	Field        string  `json:"field,omitempty"`
	Message      string  `json:"message,omitempty"`
	CumulativeRH float64 `json:"cumulative_rh,omitempty"`
}

type bulkReportJSON struct {
	DateUpdatedLocal string        `json:"date_updated_local,omitempty"`
	Updated          int           `json:"updated"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	Cancelled        int           `json:"cancelled"`
	Rows             []bulkRowJSON `json:"rows"`
}

func printBulkReport(w io.Writer, r ledger.BulkReport) error {
	if jsonOutput {
		out := bulkReportJSON{
			Updated:   r.Updated,
			Skipped:   r.Skipped,
			Failed:    r.Failed,
			Cancelled: r.Cancelled,
			Rows:      make([]bulkRowJSON, 0, len(r.Rows)),
		}
		if !r.DateUpdatedLocal.IsZero() {
			out.DateUpdatedLocal = r.DateUpdatedLocal.Format(time.RFC3339)
		}
		for _, row := range r.Rows {
			jr := bulkRowJSON{
				Row:         row.Index + 1,
				ComponentID: row.ComponentID,
				Status:      string(row.Status),
				Kind:        string(row.Kind),
				Field:       row.Field,
				Message:     row.Message,
			}
			if row.Result != nil {
				jr.CumulativeRH = row.Result.Audit.CumulativeRH
			}
			out.Rows = append(out.Rows, jr)
		}
		return writeJSON(w, out)
	}

	for _, row := range r.Rows {
		switch row.Status {
		case ledger.RowUpdated:
			fmt.Fprintf(w, "row %d  %-12s updated  %s -> %s\n", row.Index+1, row.ComponentID,
				formatHours(row.Result.Audit.PreviousRH), formatHours(row.Result.Audit.CumulativeRH))
		case ledger.RowFailed:
			fmt.Fprintf(w, "row %d  %-12s failed   %s\n", row.Index+1, row.ComponentID, row.Message)
		case ledger.RowSkipped, ledger.RowCancelled:
			fmt.Fprintf(w, "row %d  %-12s %s\n", row.Index+1, row.ComponentID, row.Status)
		}
	}
	fmt.Fprintf(w, "%d updated, %d skipped, %d failed, %d cancelled\n", r.Updated, r.Skipped, r.Failed, r.Cancelled)
	return nil
}
