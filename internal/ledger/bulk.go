package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/septivank/running-hours-ledger/internal/validator"
	"go.uber.org/zap"
)

// ApplyBulkUpdate applies every row independently and reports each outcome.
// A failing row never blocks the others. Once ctx is cancelled no further row
// starts; rows already stored stay stored.
func (l *Ledger) ApplyBulkUpdate(ctx context.Context, req BulkRequest) BulkReport {
	report := l.runBulk(ctx, req, false)

	if report.Updated > 0 {
		l.rates.Invalidate()
	}
	l.logger.Info("bulk running hours update finished",
		zap.String("user_id", req.UserID),
		zap.Int("rows", len(req.Rows)),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("cancelled", report.Cancelled),
	)
	return report
}

// ValidateBulk runs the same per-row checks as ApplyBulkUpdate against the
// current records without storing anything
func (l *Ledger) ValidateBulk(ctx context.Context, req BulkRequest) BulkReport {
	return l.runBulk(ctx, req, true)
}

func (l *Ledger) runBulk(ctx context.Context, req BulkRequest, dryRun bool) BulkReport {
	report := BulkReport{Rows: make([]RowOutcome, len(req.Rows))}
	for i, row := range req.Rows {
		report.Rows[i] = RowOutcome{Index: i, ComponentID: row.ComponentID}
	}

	// one date for every row, taken when the request is processed
	date, res := l.validator.Now(req.Timezone)
	var requestErr *ValidationError
	switch {
	case !res.IsValid:
		requestErr = validationFromResult(res)
	case !req.Mode.Valid():
		requestErr = &ValidationError{Field: "mode", Message: "please select an update mode"}
	}
	if requestErr != nil {
		for i, row := range req.Rows {
			if validator.IsBlank(row.Value) {
				report.Rows[i].Status = RowSkipped
				continue
			}
			report.Rows[i] = failedRow(report.Rows[i], requestErr)
		}
		report.tally()
		return report
	}
	report.DateUpdatedLocal = date

	var wg sync.WaitGroup
	run := func(i int) {
		defer wg.Done()
		if ctx.Err() != nil {
			report.Rows[i].Status = unstartedStatus(req.Rows[i])
			return
		}
		report.Rows[i] = l.bulkRow(ctx, report.Rows[i], req, req.Rows[i], date, dryRun)
	}

	pool, err := ants.NewPool(l.workers)
	if err != nil {
		l.logger.Warn("bulk worker pool unavailable, applying rows sequentially", zap.Error(err))
	} else {
		defer pool.Release()
	}

	for i := range req.Rows {
		if ctx.Err() != nil {
			for j := i; j < len(req.Rows); j++ {
				report.Rows[j].Status = unstartedStatus(req.Rows[j])
			}
			break
		}

		wg.Add(1)
		i := i
		if pool == nil {
			run(i)
			continue
		}
		if err := pool.Submit(func() { run(i) }); err != nil {
			run(i)
		}
	}
	wg.Wait()

	report.tally()
	return report
}

func (l *Ledger) bulkRow(ctx context.Context, outcome RowOutcome, req BulkRequest, row BulkRow, date time.Time, dryRun bool) RowOutcome {
	if validator.IsBlank(row.Value) {
		outcome.Status = RowSkipped
		return outcome
	}

	reading, res := l.validator.ValidateReading(validator.ReadingForm{
		Value:         row.Value,
		MeterReplaced: row.MeterReplaced,
		OldMeterFinal: row.OldMeterFinal,
		NewMeterStart: row.NewMeterStart,
	})
	if !res.IsValid {
		return failedRow(outcome, validationFromResult(res))
	}

	result, err := l.apply(ctx, change{
		componentID: strings.TrimSpace(row.ComponentID),
		mode:        req.Mode,
		reading:     reading,
		date:        date,
		timezone:    strings.TrimSpace(req.Timezone),
		comments:    row.Comments,
		userID:      req.UserID,
		source:      SourceBulk,
	}, dryRun)
	if err != nil {
		l.logger.Debug("bulk row rejected",
			zap.Int("row", outcome.Index),
			zap.String("component_id", row.ComponentID),
			zap.Error(err),
		)
		return failedRow(outcome, err)
	}

	outcome.Status = RowUpdated
	outcome.Result = result
	return outcome
}

// unstartedStatus is the outcome of a row cut off by cancellation. Blank rows
// are skipped whether or not they ran.
func unstartedStatus(row BulkRow) RowStatus {
	if validator.IsBlank(row.Value) {
		return RowSkipped
	}
	return RowCancelled
}

func failedRow(outcome RowOutcome, err error) RowOutcome {
	outcome.Status = RowFailed
	outcome.Message = err.Error()

	var ve *ValidationError
	if errors.As(err, &ve) {
		outcome.Field = ve.Field
		outcome.Message = ve.Message
	}

	outcome.Kind = FailureKindOf(err)
	return outcome
}
