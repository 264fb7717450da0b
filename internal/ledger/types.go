package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode selects how an entered value is combined with the stored total
type Mode int

const (
	// ModeSetTotal treats the entered value as the new cumulative total
	ModeSetTotal Mode = iota + 1
	// ModeAddDelta adds the entered value to the stored total
	ModeAddDelta
)

// ParseMode maps the wire names setTotal and addDelta onto Mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "setTotal":
		return ModeSetTotal, nil
	case "addDelta":
		return ModeAddDelta, nil
	default:
		return 0, fmt.Errorf("unknown update mode '%s'", s)
	}
}

// Valid reports whether m is one of the declared modes
func (m Mode) Valid() bool {
	return m == ModeSetTotal || m == ModeAddDelta
}

func (m Mode) String() string {
	switch m {
	case ModeSetTotal:
		return "setTotal"
	case ModeAddDelta:
		return "addDelta"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Source tags where an audit record came from
type Source string

const (
	SourceSingle Source = "single"
	SourceBulk   Source = "bulk"
)

// Record is the stored running-hours state of one component
type Record struct {
	ComponentID            string
	CumulativeRunningHours float64
	LastUpdatedLocal       time.Time
	LastUpdatedTZ          string
	Version                int64
}

// Audit is the append-only trace of one accepted update
type Audit struct {
	ID                 uuid.UUID
	ComponentID        string
	PreviousRH         float64
	NewRH              float64
	CumulativeRH       float64
	DateUpdatedLocal   time.Time
	DateUpdatedDisplay string
	DateUpdatedTZ      string
	EnteredAtUTC       time.Time
	UserID             string
	Source             Source
	Notes              string
	MeterReplaced      bool
	OldMeterFinal      *float64
	NewMeterStart      *float64
	Version            int64
}

// UpdateInput is a single running-hours entry as submitted
type UpdateInput struct {
	Mode             Mode
	Value            string
	DateUpdatedLocal string
	Timezone         string
	MeterReplaced    bool
	OldMeterFinal    string
	NewMeterStart    string
	Comments         string
	UserID           string
}

// UpdateResult describes an accepted update
type UpdateResult struct {
	Previous Record
	Record   Record
	Audit    Audit
}

// BulkRow is one component line of a bulk update
type BulkRow struct {
	ComponentID   string
	Value         string
	MeterReplaced bool
	OldMeterFinal string
	NewMeterStart string
	Comments      string
}

// BulkRequest groups rows that share mode, timezone, user and update date
type BulkRequest struct {
	Mode     Mode
	Timezone string
	UserID   string
	Rows     []BulkRow
}

// RowStatus is the outcome of one bulk row
type RowStatus string

const (
	RowUpdated   RowStatus = "updated"
	RowSkipped   RowStatus = "skipped"
	RowFailed    RowStatus = "failed"
	RowCancelled RowStatus = "cancelled"
)

// FailureKind classifies why a bulk row failed
type FailureKind string

const (
	FailureInvalidNumber FailureKind = "invalid_number"
	FailureMonotonicity  FailureKind = "monotonicity"
	FailureValidation    FailureKind = "validation"
	FailureNotFound      FailureKind = "not_found"
	FailurePersistence   FailureKind = "persistence"
)

// RowOutcome is the per-row entry of a BulkReport
type RowOutcome struct {
	Index       int
	ComponentID string
	Status      RowStatus
	Kind        FailureKind
	Field       string
	Message     string
	Result      *UpdateResult
}

// BulkReport aggregates the outcome of a bulk update in request order
type BulkReport struct {
	DateUpdatedLocal time.Time
	Rows             []RowOutcome
	Updated          int
	Skipped          int
	Failed           int
	Cancelled        int
}

// Blocked reports whether any row failed. Callers that save all-or-nothing
// use it to hold the save until rows are corrected or removed.
func (r BulkReport) Blocked() bool {
	return r.Failed > 0
}

// Failures returns the failed rows
func (r BulkReport) Failures() []RowOutcome {
	var out []RowOutcome
	for _, row := range r.Rows {
		if row.Status == RowFailed {
			out = append(out, row)
		}
	}
	return out
}

func (r *BulkReport) tally() {
	r.Updated, r.Skipped, r.Failed, r.Cancelled = 0, 0, 0, 0
	for _, row := range r.Rows {
		switch row.Status {
		case RowUpdated:
			r.Updated++
		case RowSkipped:
			r.Skipped++
		case RowFailed:
			r.Failed++
		case RowCancelled:
			r.Cancelled++
		}
	}
}
