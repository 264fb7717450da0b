package report

import (
	"context"

	"github.com/septivank/running-hours-ledger/internal/db"
	"github.com/septivank/running-hours-ledger/tools/timeparser"
	"github.com/shopspring/decimal"
)

// Unavailable is rendered in place of a utilization rate that cannot be derived
const Unavailable = "—"

// RateSource looks up utilization rates for components
type RateSource interface {
	UtilizationRate(ctx context.Context, componentID string) (float64, bool)
}

// SnapshotRow is one exported ledger line
type SnapshotRow struct {
	Vessel            string `csv:"Vessel"`
	Component         string `csv:"Component"`
	ComponentCode     string `csv:"Component Code"`
	ComponentCategory string `csv:"Component Category"`
	RunningHours      string `csv:"Running Hours"`
	LastUpdated       string `csv:"Last Updated"`
	UtilizationRate   string `csv:"Utilization Rate (hrs/day)"`
	Notes             string `csv:"Notes"`

	Hours float64  `csv:"-"`
	Rate  *float64 `csv:"-"`
}

// BuildSnapshot projects components and their utilization rates into export rows
func BuildSnapshot(ctx context.Context, components []db.Component, rates RateSource) []SnapshotRow {
	rows := make([]SnapshotRow, 0, len(components))
	for _, c := range components {
		row := SnapshotRow{
			Vessel:            c.VesselName,
			Component:         c.Name,
			ComponentCode:     c.Code,
			ComponentCategory: c.Category,
			RunningHours:      decimal.NewFromFloat(c.CumulativeRunningHours).String(),
			UtilizationRate:   Unavailable,
			Hours:             c.CumulativeRunningHours,
		}
		if c.LastUpdatedLocal != nil {
			row.LastUpdated = timeparser.FormatVesselDisplay(*c.LastUpdatedLocal)
		}
		if c.Notes != nil {
			row.Notes = *c.Notes
		}
		if rate, ok := rates.UtilizationRate(ctx, c.ID); ok {
			rounded := decimal.NewFromFloat(rate).Round(2)
			row.UtilizationRate = rounded.StringFixed(2)
			f := rounded.InexactFloat64()
			row.Rate = &f
		}
		rows = append(rows, row)
	}
	return rows
}

// cells returns the row values for a spreadsheet, keeping numbers numeric
func (r SnapshotRow) cells() []interface{} {
	var rate interface{} = Unavailable
	if r.Rate != nil {
		rate = *r.Rate
	}
	return []interface{}{
		r.Vessel,
		r.Component,
		r.ComponentCode,
		r.ComponentCategory,
		r.Hours,
		r.LastUpdated,
		rate,
		r.Notes,
	}
}
