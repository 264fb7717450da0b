package ledger_test

import (
	"context"
	"testing"

	"github.com/septivank/running-hours-ledger/internal/ledger"
	"github.com/septivank/running-hours-ledger/internal/utilization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bulkRequest(mode ledger.Mode, rows ...ledger.BulkRow) ledger.BulkRequest {
	return ledger.BulkRequest{Mode: mode, Timezone: "UTC", UserID: "second.engineer", Rows: rows}
}

func TestApplyBulkUpdate_PartialSuccess(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"C1", "C2", "C3", "C4", "C5"} {
		f.store.seed(id, 500)
	}

	report := f.ledger.ApplyBulkUpdate(context.Background(), bulkRequest(ledger.ModeSetTotal,
		ledger.BulkRow{ComponentID: "C1", Value: "510"},
		ledger.BulkRow{ComponentID: "C2", Value: "520"},
		ledger.BulkRow{ComponentID: "C3", Value: "5x0"},
		ledger.BulkRow{ComponentID: "C4", Value: "480"},
		ledger.BulkRow{ComponentID: "C5", Value: "550"},
	))

	assert.Equal(t, 3, report.Updated)
	assert.Equal(t, 2, report.Failed)
	assert.Zero(t, report.Skipped)
	assert.True(t, report.Blocked())
	require.Len(t, report.Rows, 5)

	assert.Equal(t, ledger.RowFailed, report.Rows[2].Status)
	assert.Equal(t, ledger.FailureInvalidNumber, report.Rows[2].Kind)
	assert.Equal(t, "please enter a valid number", report.Rows[2].Message)

	assert.Equal(t, ledger.RowFailed, report.Rows[3].Status)
	assert.Equal(t, ledger.FailureMonotonicity, report.Rows[3].Kind)
	assert.Equal(t, ledger.MsgNotMonotonic, report.Rows[3].Message)

	for _, i := range []int{0, 1, 4} {
		assert.Equal(t, ledger.RowUpdated, report.Rows[i].Status, "row %d", i)
		require.NotNil(t, report.Rows[i].Result)
		assert.Equal(t, ledger.SourceBulk, report.Rows[i].Result.Audit.Source)
	}

	assert.Equal(t, 510.0, f.store.record("C1").CumulativeRunningHours)
	assert.Equal(t, 520.0, f.store.record("C2").CumulativeRunningHours)
	assert.Equal(t, 500.0, f.store.record("C3").CumulativeRunningHours)
	assert.Equal(t, 500.0, f.store.record("C4").CumulativeRunningHours)
	assert.Equal(t, 550.0, f.store.record("C5").CumulativeRunningHours)
	assert.Equal(t, 3, f.store.auditCount())
	assert.Len(t, report.Failures(), 2)
}

func TestApplyBulkUpdate_BlankRowsSkipped(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C1", 10)
	f.store.seed("C2", 10)

	report := f.ledger.ApplyBulkUpdate(context.Background(), bulkRequest(ledger.ModeAddDelta,
		ledger.BulkRow{ComponentID: "C1", Value: "  "},
		ledger.BulkRow{ComponentID: "C2", Value: "4"},
	))

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.False(t, report.Blocked())
	assert.Equal(t, ledger.RowSkipped, report.Rows[0].Status)
	assert.Equal(t, 14.0, f.store.record("C2").CumulativeRunningHours)
}

func TestApplyBulkUpdate_SharedDate(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C1", 10)
	f.store.seed("C2", 10)

	report := f.ledger.ApplyBulkUpdate(context.Background(), bulkRequest(ledger.ModeAddDelta,
		ledger.BulkRow{ComponentID: "C1", Value: "1"},
		ledger.BulkRow{ComponentID: "C2", Value: "2"},
	))

	require.Equal(t, 2, report.Updated)
	assert.True(t, report.DateUpdatedLocal.Equal(f.clock.Now()))
	for _, row := range report.Rows {
		assert.True(t, row.Result.Audit.DateUpdatedLocal.Equal(report.DateUpdatedLocal))
		assert.Equal(t, "second.engineer", row.Result.Audit.UserID)
	}
}

func TestApplyBulkUpdate_SameComponentTwiceIsSerialized(t *testing.T) {
	f := newFixture(t, ledger.WithBulkWorkers(4))
	f.store.seed("C1", 100)

	report := f.ledger.ApplyBulkUpdate(context.Background(), bulkRequest(ledger.ModeAddDelta,
		ledger.BulkRow{ComponentID: "C1", Value: "10"},
		ledger.BulkRow{ComponentID: "C1", Value: "10"},
	))

	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 120.0, f.store.record("C1").CumulativeRunningHours)
	assert.Equal(t, int64(2), f.store.record("C1").Version)
}

func TestApplyBulkUpdate_MeterReplacedRow(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C1", 100)

	report := f.ledger.ApplyBulkUpdate(context.Background(), bulkRequest(ledger.ModeAddDelta,
		ledger.BulkRow{ComponentID: "C1", Value: "20", MeterReplaced: true, OldMeterFinal: "95", NewMeterStart: "0", Comments: "meter swapped"},
	))

	require.Equal(t, 1, report.Updated)
	assert.Equal(t, 120.0, f.store.record("C1").CumulativeRunningHours)
	assert.Equal(t, "meter swapped", report.Rows[0].Result.Audit.Notes)
}

func TestApplyBulkUpdate_UnknownComponentAndPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C2", 1)
	f.store.persistErr["C2"] = assert.AnError

	report := f.ledger.ApplyBulkUpdate(context.Background(), bulkRequest(ledger.ModeAddDelta,
		ledger.BulkRow{ComponentID: "C1", Value: "1"},
		ledger.BulkRow{ComponentID: "C2", Value: "1"},
		ledger.BulkRow{ComponentID: "", Value: "1"},
	))

	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, ledger.FailureNotFound, report.Rows[0].Kind)
	assert.Equal(t, ledger.FailurePersistence, report.Rows[1].Kind)
	assert.Equal(t, ledger.FailureValidation, report.Rows[2].Kind)
}

func TestApplyBulkUpdate_InvalidTimezoneFailsEveryFilledRow(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C1", 1)

	req := bulkRequest(ledger.ModeAddDelta,
		ledger.BulkRow{ComponentID: "C1", Value: "1"},
		ledger.BulkRow{ComponentID: "C1", Value: ""},
	)
	req.Timezone = "Not/AZone"

	report := f.ledger.ApplyBulkUpdate(context.Background(), req)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "timezone", report.Rows[0].Field)
	assert.Zero(t, f.store.auditCount())
}

func TestApplyBulkUpdate_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C1", 1)
	f.store.seed("C2", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.ledger.ApplyBulkUpdate(ctx, bulkRequest(ledger.ModeAddDelta,
		ledger.BulkRow{ComponentID: "C1", Value: "1"},
		ledger.BulkRow{ComponentID: "C2", Value: "1"},
	))

	assert.Equal(t, 2, report.Cancelled)
	assert.Zero(t, f.store.auditCount())
}

func TestApplyBulkUpdate_CancelledStillSkipsBlankRows(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C1", 1)
	f.store.seed("C2", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.ledger.ApplyBulkUpdate(ctx, bulkRequest(ledger.ModeAddDelta,
		ledger.BulkRow{ComponentID: "C1", Value: "  "},
		ledger.BulkRow{ComponentID: "C2", Value: "1"},
	))

	assert.Equal(t, ledger.RowSkipped, report.Rows[0].Status)
	assert.Equal(t, ledger.RowCancelled, report.Rows[1].Status)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Cancelled)
	assert.Zero(t, f.store.auditCount())
}

func TestApplyBulkUpdate_CancelledMidwayKeepsCommittedRows(t *testing.T) {
	f := newFixture(t, ledger.WithBulkWorkers(1))
	for _, id := range []string{"C1", "C2", "C3"} {
		f.store.seed(id, 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.store.onPersist = func(ledger.Audit) { cancel() }

	report := f.ledger.ApplyBulkUpdate(ctx, bulkRequest(ledger.ModeAddDelta,
		ledger.BulkRow{ComponentID: "C1", Value: "1"},
		ledger.BulkRow{ComponentID: "C2", Value: "1"},
		ledger.BulkRow{ComponentID: "C3", Value: "1"},
	))

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 2, report.Cancelled)
	assert.Equal(t, ledger.RowUpdated, report.Rows[0].Status)
	assert.Equal(t, 2.0, f.store.record("C1").CumulativeRunningHours)
	assert.Equal(t, 1.0, f.store.record("C2").CumulativeRunningHours)
}

func TestApplyBulkUpdate_InvalidatesCacheOnce(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C1", 500)
	f.store.history["C1"] = []utilization.Sample{
		{At: f.clock.Now().AddDate(0, 0, -10), CumulativeRH: 260},
		{At: f.clock.Now().AddDate(0, 0, -5), CumulativeRH: 380},
	}
	_, ok := f.ledger.UtilizationRate(context.Background(), "C1")
	require.True(t, ok)

	f.ledger.ApplyBulkUpdate(context.Background(), bulkRequest(ledger.ModeSetTotal,
		ledger.BulkRow{ComponentID: "C1", Value: "500"},
	))

	_, ok = f.ledger.UtilizationRate(context.Background(), "C1")
	require.True(t, ok)
	assert.Equal(t, 2, f.store.calls())
}

func TestApplyBulkUpdate_NoSuccessKeepsCache(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C1", 500)
	f.store.history["C1"] = []utilization.Sample{
		{At: f.clock.Now().AddDate(0, 0, -10), CumulativeRH: 260},
		{At: f.clock.Now().AddDate(0, 0, -5), CumulativeRH: 380},
	}
	_, ok := f.ledger.UtilizationRate(context.Background(), "C1")
	require.True(t, ok)

	f.ledger.ApplyBulkUpdate(context.Background(), bulkRequest(ledger.ModeSetTotal,
		ledger.BulkRow{ComponentID: "C1", Value: "1"},
	))

	_, ok = f.ledger.UtilizationRate(context.Background(), "C1")
	require.True(t, ok)
	assert.Equal(t, 1, f.store.calls())
}

func TestValidateBulk_DoesNotPersist(t *testing.T) {
	f := newFixture(t)
	f.store.seed("C1", 500)
	f.store.seed("C2", 500)

	report := f.ledger.ValidateBulk(context.Background(), bulkRequest(ledger.ModeSetTotal,
		ledger.BulkRow{ComponentID: "C1", Value: "600"},
		ledger.BulkRow{ComponentID: "C2", Value: "400"},
	))

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, report.Blocked())
	assert.Zero(t, f.store.auditCount())
	assert.Equal(t, 500.0, f.store.record("C1").CumulativeRunningHours)
}
