package db

import (
	"time"

	"github.com/google/uuid"
)

// Component represents a tracked component row with its running-hours state
type Component struct {
	ID                     string
	VesselName             string
	Name                   string
	Code                   string
	Category               string
	CumulativeRunningHours float64
	LastUpdatedLocal       *time.Time
	LastUpdatedTZ          *string
	Version                int64
	Notes                  *string
}

// RunningHoursAudit represents an accepted update in the database
type RunningHoursAudit struct {
	ID               uuid.UUID
	ComponentID      string
	PreviousRH       float64
	NewRH            float64
	CumulativeRH     float64
	DateUpdatedLocal time.Time
	DateUpdatedTZ    string
	EnteredAtUTC     time.Time
	UserID           string
	Source           string
	Notes            *string
	MeterReplaced    bool
	OldMeterFinal    *float64
	NewMeterStart    *float64
	Version          int64
}
