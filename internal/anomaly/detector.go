package anomaly

import (
	"fmt"
	"time"
)

// Reading is an accepted running-hours change as seen by the detector
type Reading struct {
	PreviousRH    float64
	CumulativeRH  float64
	PreviousAt    time.Time
	At            time.Time
	MeterReplaced bool
}

// Detector flags implausible running-hours updates without blocking them
type Detector struct {
	maxHoursPerDay float64
}

// NewDetector creates a new anomaly detector allowing at most maxHoursPerDay
// running hours per elapsed calendar day
func NewDetector(maxHoursPerDay float64) *Detector {
	if maxHoursPerDay <= 0 {
		maxHoursPerDay = 24
	}
	return &Detector{maxHoursPerDay: maxHoursPerDay}
}

// DetectAnomaly checks if the change is plausible given the time elapsed since
// the previous update
func (d *Detector) DetectAnomaly(r Reading) (bool, string) {
	added := r.CumulativeRH - r.PreviousRH

	if added < 0 && !r.MeterReplaced {
		return true, fmt.Sprintf("negative running hours: %.2f", added)
	}

	// first reading has nothing to compare against
	if r.PreviousAt.IsZero() || added <= 0 {
		return false, ""
	}

	elapsed := r.At.Sub(r.PreviousAt)
	if elapsed < 0 {
		return true, fmt.Sprintf("update dated %s before previous update %s",
			r.At.Format(time.RFC3339), r.PreviousAt.Format(time.RFC3339))
	}

	allowed := elapsed.Hours() * d.maxHoursPerDay / 24
	if added > allowed {
		return true, fmt.Sprintf("added %.2f hours exceeds %.2f hours possible since previous update",
			added, allowed)
	}

	return false, ""
}
