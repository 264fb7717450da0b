package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/septivank/running-hours-ledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAuditRow(t *testing.T) {
	start := 0.0
	final := 4800.0
	audit := ledger.Audit{
		ID:            uuid.New(),
		ComponentID:   "DG-3",
		PreviousRH:    100,
		NewRH:         20,
		CumulativeRH:  120,
		Source:        ledger.SourceBulk,
		MeterReplaced: true,
		OldMeterFinal: &final,
		NewMeterStart: &start,
		Version:       4,
	}

	row := toAuditRow(audit)
	assert.Equal(t, audit.ID, row.ID)
	assert.Equal(t, "bulk", row.Source)
	assert.Nil(t, row.Notes)
	assert.Equal(t, &final, row.OldMeterFinal)
	assert.Equal(t, int64(4), row.Version)

	audit.Notes = "meter swapped"
	row = toAuditRow(audit)
	require.NotNil(t, row.Notes)
	assert.Equal(t, "meter swapped", *row.Notes)
}

func TestInZone(t *testing.T) {
	stored := time.Date(2026, 3, 9, 22, 30, 0, 0, time.UTC)

	local := inZone(stored, "Asia/Singapore")
	assert.Equal(t, "Asia/Singapore", local.Location().String())
	assert.Equal(t, 6, local.Hour())
	assert.True(t, local.Equal(stored))

	assert.Equal(t, stored, inZone(stored, "Mars/Olympus"))
}

func TestIsVersionConflict(t *testing.T) {
	lost := &pgconn.PgError{Code: "23505", ConstraintName: "running_hours_audit_component_version_key"}

	assert.True(t, isVersionConflict(lost))
	assert.True(t, isVersionConflict(fmt.Errorf("exec: %w", lost)))
	assert.False(t, isVersionConflict(&pgconn.PgError{Code: "23505", ConstraintName: "running_hours_audit_pkey"}))
	assert.False(t, isVersionConflict(&pgconn.PgError{Code: "23503", ConstraintName: "running_hours_audit_component_version_key"}))
	assert.False(t, isVersionConflict(errors.New("connection reset")))
	assert.False(t, isVersionConflict(nil))
}
