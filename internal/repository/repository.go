package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/running-hours-ledger/internal/db"
	"github.com/septivank/running-hours-ledger/internal/ledger"
	"github.com/septivank/running-hours-ledger/internal/utilization"
	"github.com/septivank/running-hours-ledger/tools/timeparser"
)

const (
	uniqueViolation = "23505"
	// one audit per component version; a second writer of the same version lost the race
	auditVersionConstraint = "running_hours_audit_component_version_key"
)

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ ledger.Store = (*Repository)(nil)

// FetchComponentRunningHours reads the current running-hours state of a component
func (r *Repository) FetchComponentRunningHours(ctx context.Context, componentID string) (ledger.Record, error) {
	query := `
		SELECT id, cumulative_running_hours, last_updated_local, last_updated_tz, version
		FROM components
		WHERE id = $1
	`

	var (
		record    ledger.Record
		updatedAt *time.Time
		tz        *string
	)
	err := r.pool.QueryRow(ctx, query, componentID).Scan(
		&record.ComponentID,
		&record.CumulativeRunningHours,
		&updatedAt,
		&tz,
		&record.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Record{}, fmt.Errorf("component %s: %w", componentID, ledger.ErrComponentNotFound)
	}
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to query component: %w", err)
	}

	if updatedAt != nil {
		record.LastUpdatedLocal = *updatedAt
		if tz != nil {
			record.LastUpdatedTZ = *tz
			record.LastUpdatedLocal = inZone(*updatedAt, *tz)
		}
	}

	return record, nil
}

// PersistRunningHoursUpdate appends the audit and moves the component to the
// new cumulative value in one transaction. An audit id that is already stored
// is treated as a completed retry.
func (r *Repository) PersistRunningHoursUpdate(ctx context.Context, audit ledger.Audit, newCumulative float64) error {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted, err := r.InsertAuditTx(ctx, tx, toAuditRow(audit))
	if err != nil {
		return err
	}
	if !inserted {
		return tx.Commit(ctx)
	}

	updateQuery := `
		UPDATE components
		SET cumulative_running_hours = $1,
			last_updated_local = $2,
			last_updated_tz = $3,
			version = $4
		WHERE id = $5 AND version = $6
	`
	tag, err := tx.Exec(ctx, updateQuery,
		newCumulative,
		audit.DateUpdatedLocal,
		audit.DateUpdatedTZ,
		audit.Version,
		audit.ComponentID,
		audit.Version-1,
	)
	if err != nil {
		return fmt.Errorf("failed to update component running hours: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrVersionConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertAuditTx appends an audit row within a transaction and reports whether
// the row was new
func (r *Repository) InsertAuditTx(ctx context.Context, tx pgx.Tx, audit *db.RunningHoursAudit) (bool, error) {
	query := `
		INSERT INTO running_hours_audit (
			id, component_id, previous_rh, new_rh, cumulative_rh,
			date_updated_local, date_updated_tz, entered_at_utc, user_id, source,
			notes, meter_replaced, old_meter_final, new_meter_start, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := tx.Exec(ctx, query,
		audit.ID,
		audit.ComponentID,
		audit.PreviousRH,
		audit.NewRH,
		audit.CumulativeRH,
		audit.DateUpdatedLocal,
		audit.DateUpdatedTZ,
		audit.EnteredAtUTC,
		audit.UserID,
		audit.Source,
		audit.Notes,
		audit.MeterReplaced,
		audit.OldMeterFinal,
		audit.NewMeterStart,
		audit.Version,
	)
	if isVersionConflict(err) {
		return false, fmt.Errorf("audit version %d of component %s already exists: %w",
			audit.Version, audit.ComponentID, ledger.ErrVersionConflict)
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert running hours audit: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// FetchRunningHoursHistory gets accepted cumulative values for utilization
func (r *Repository) FetchRunningHoursHistory(ctx context.Context, componentID string, since time.Time) ([]utilization.Sample, error) {
	query := `
		SELECT date_updated_local, cumulative_rh
		FROM running_hours_audit
		WHERE component_id = $1 AND date_updated_local >= $2
		ORDER BY date_updated_local ASC, version ASC
	`

	rows, err := r.pool.Query(ctx, query, componentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query running hours history: %w", err)
	}
	defer rows.Close()

	var samples []utilization.Sample
	for rows.Next() {
		var s utilization.Sample
		if err := rows.Scan(&s.At, &s.CumulativeRH); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return samples, nil
}

// ListComponents returns the ledger snapshot, optionally for one vessel
func (r *Repository) ListComponents(ctx context.Context, vessel string) ([]db.Component, error) {
	query := `
		SELECT c.id, v.name, c.name, c.code, c.category, c.cumulative_running_hours,
			c.last_updated_local, c.last_updated_tz, c.version, c.notes
		FROM components c
		JOIN vessels v ON v.id = c.vessel_id
		WHERE $1 = '' OR v.name = $1
		ORDER BY v.name, c.code
	`

	rows, err := r.pool.Query(ctx, query, vessel)
	if err != nil {
		return nil, fmt.Errorf("failed to query components: %w", err)
	}
	defer rows.Close()

	var components []db.Component
	for rows.Next() {
		var c db.Component
		if err := rows.Scan(
			&c.ID,
			&c.VesselName,
			&c.Name,
			&c.Code,
			&c.Category,
			&c.CumulativeRunningHours,
			&c.LastUpdatedLocal,
			&c.LastUpdatedTZ,
			&c.Version,
			&c.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		if c.LastUpdatedLocal != nil && c.LastUpdatedTZ != nil {
			local := inZone(*c.LastUpdatedLocal, *c.LastUpdatedTZ)
			c.LastUpdatedLocal = &local
		}
		components = append(components, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return components, nil
}

func toAuditRow(a ledger.Audit) *db.RunningHoursAudit {
	var notes *string
	if a.Notes != "" {
		notes = &a.Notes
	}
	return &db.RunningHoursAudit{
		ID:               a.ID,
		ComponentID:      a.ComponentID,
		PreviousRH:       a.PreviousRH,
		NewRH:            a.NewRH,
		CumulativeRH:     a.CumulativeRH,
		DateUpdatedLocal: a.DateUpdatedLocal,
		DateUpdatedTZ:    a.DateUpdatedTZ,
		EnteredAtUTC:     a.EnteredAtUTC,
		UserID:           a.UserID,
		Source:           string(a.Source),
		Notes:            notes,
		MeterReplaced:    a.MeterReplaced,
		OldMeterFinal:    a.OldMeterFinal,
		NewMeterStart:    a.NewMeterStart,
		Version:          a.Version,
	}
}

func isVersionConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == auditVersionConstraint
}

// inZone shows a stored instant in the vessel zone it was entered in
func inZone(t time.Time, tz string) time.Time {
	loc, err := timeparser.LoadVesselLocation(tz)
	if err != nil {
		return t
	}
	return t.In(loc)
}
