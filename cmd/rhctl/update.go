package main

import (
	"fmt"
	"os"
	"time"

	"github.com/septivank/running-hours-ledger/internal/ledger"
	"github.com/septivank/running-hours-ledger/tools/timeparser"
	"github.com/spf13/cobra"
)

var updateFlags struct {
	component     string
	mode          string
	value         string
	date          string
	tz            string
	user          string
	meterReplaced bool
	oldMeterFinal string
	newMeterStart string
	comments      string
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Apply a single running-hours entry to a component",
	Example: `  rhctl update --component ME-1 --value 12500 --date 2026-03-10 --tz Asia/Singapore
  rhctl update --component DG-2 --mode addDelta --value 18.5
  rhctl update --component DG-3 --value 20 --meter-replaced --old-meter-final 4800 --new-meter-start 0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := updateFlags
		mode, err := ledger.ParseMode(f.mode)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		tz := a.timezoneOr(f.tz)
		date := f.date
		if date == "" {
			loc, err := timeparser.LoadVesselLocation(tz)
			if err != nil {
				return err
			}
			date = time.Now().In(loc).Format("2006-01-02")
		}

		result, err := a.ledger.ApplySingleUpdate(cmd.Context(), f.component, ledger.UpdateInput{
			Mode:             mode,
			Value:            f.value,
			DateUpdatedLocal: date,
			Timezone:         tz,
			MeterReplaced:    f.meterReplaced,
			OldMeterFinal:    f.oldMeterFinal,
			NewMeterStart:    f.newMeterStart,
			Comments:         f.comments,
			UserID:           userOr(f.user),
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(os.Stdout, result.Audit)
		}
		fmt.Printf("Updated %s: %s -> %s hours (%s %s)\n",
			result.Audit.ComponentID,
			formatHours(result.Audit.PreviousRH),
			formatHours(result.Audit.CumulativeRH),
			result.Audit.DateUpdatedDisplay,
			result.Audit.DateUpdatedTZ,
		)
		fmt.Printf("  audit: %s (version %d)\n", result.Audit.ID, result.Audit.Version)
		return nil
	},
}

func init() {
	fl := updateCmd.Flags()
	fl.StringVar(&updateFlags.component, "component", "", "component id")
	fl.StringVar(&updateFlags.mode, "mode", ledger.ModeSetTotal.String(), "update mode (setTotal, addDelta)")
	fl.StringVar(&updateFlags.value, "value", "", "running hours value as read or added")
	fl.StringVar(&updateFlags.date, "date", "", "vessel-local date updated (default today)")
	fl.StringVar(&updateFlags.tz, "tz", "", "vessel timezone (default LEDGER_DEFAULT_TIMEZONE)")
	fl.StringVar(&updateFlags.user, "user", "", "user recorded on the audit (default $USER)")
	fl.BoolVar(&updateFlags.meterReplaced, "meter-replaced", false, "the hour meter was replaced or reset")
	fl.StringVar(&updateFlags.oldMeterFinal, "old-meter-final", "", "final reading of the replaced meter")
	fl.StringVar(&updateFlags.newMeterStart, "new-meter-start", "", "start reading of the new meter")
	fl.StringVar(&updateFlags.comments, "comments", "", "notes stored on the audit")
	_ = updateCmd.MarkFlagRequired("component")
	_ = updateCmd.MarkFlagRequired("value")
	rootCmd.AddCommand(updateCmd)
}
