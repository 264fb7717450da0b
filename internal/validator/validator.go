package validator

import (
	"math"
	"strings"
	"time"

	"github.com/septivank/running-hours-ledger/tools/timeparser"
	"github.com/spf13/cast"
)

// Rejection reasons shown next to the offending field
const (
	ReasonInvalidNumber      = "please enter a valid number"
	ReasonRequired           = "value is required"
	ReasonNegative           = "negative value detected"
	ReasonFutureDate         = "date updated cannot be in the future"
	ReasonInvalidDate        = "please enter a valid date"
	ReasonInvalidTimezone    = "please select a valid timezone"
	ReasonMeterFieldRequired = "required when the meter was replaced"
	ReasonBelowMeterStart    = "new meter reading must be ≥ new meter start reading"
)

// Field names reported in ValidationResult
const (
	FieldValue            = "value"
	FieldDateUpdatedLocal = "dateUpdatedLocal"
	FieldTimezone         = "timezone"
	FieldOldMeterFinal    = "oldMeterFinal"
	FieldNewMeterStart    = "newMeterStart"
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid bool
	Field   string
	Reason  string
}

func invalid(field, reason string) ValidationResult {
	return ValidationResult{IsValid: false, Field: field, Reason: reason}
}

// ReadingForm is a running-hours entry as typed by the user
type ReadingForm struct {
	Value         string
	MeterReplaced bool
	OldMeterFinal string
	NewMeterStart string
}

// Reading is a ReadingForm with its numbers parsed
type Reading struct {
	Value         float64
	MeterReplaced bool
	OldMeterFinal *float64
	NewMeterStart *float64
}

// Validator parses and checks running-hours input
type Validator struct {
	now func() time.Time
}

// NewValidator creates a new validator; now supplies the current instant
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// IsBlank reports whether a form value was left empty
func IsBlank(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

// ParseNumber parses a numeric form value
func ParseNumber(raw string) (float64, bool) {
	value, err := cast.ToFloat64E(strings.TrimSpace(raw))
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// ValidateReading parses the numeric fields of a single entry
func (v *Validator) ValidateReading(form ReadingForm) (Reading, ValidationResult) {
	result := ValidationResult{IsValid: true}

	if IsBlank(form.Value) {
		return Reading{}, invalid(FieldValue, ReasonRequired)
	}
	value, ok := ParseNumber(form.Value)
	if !ok {
		return Reading{}, invalid(FieldValue, ReasonInvalidNumber)
	}

	reading := Reading{Value: value, MeterReplaced: form.MeterReplaced}
	if !form.MeterReplaced {
		return reading, result
	}

	if value < 0 {
		return Reading{}, invalid(FieldValue, ReasonNegative)
	}

	oldFinal, res := parseMeterField(FieldOldMeterFinal, form.OldMeterFinal)
	if !res.IsValid {
		return Reading{}, res
	}
	newStart, res := parseMeterField(FieldNewMeterStart, form.NewMeterStart)
	if !res.IsValid {
		return Reading{}, res
	}
	if value < newStart {
		return Reading{}, invalid(FieldValue, ReasonBelowMeterStart)
	}

	reading.OldMeterFinal = &oldFinal
	reading.NewMeterStart = &newStart
	return reading, result
}

func parseMeterField(field, raw string) (float64, ValidationResult) {
	if IsBlank(raw) {
		return 0, invalid(field, ReasonMeterFieldRequired)
	}
	value, ok := ParseNumber(raw)
	if !ok {
		return 0, invalid(field, ReasonInvalidNumber)
	}
	if value < 0 {
		return 0, invalid(field, ReasonNegative)
	}
	return value, ValidationResult{IsValid: true}
}

// ValidateDate parses a vessel-local update date and rejects days after today.
// A date entered without a time of day gets the current vessel-local time.
func (v *Validator) ValidateDate(dateStr, timezone string) (time.Time, ValidationResult) {
	loc, err := timeparser.LoadVesselLocation(timezone)
	if err != nil {
		return time.Time{}, invalid(FieldTimezone, ReasonInvalidTimezone)
	}

	if IsBlank(dateStr) {
		return time.Time{}, invalid(FieldDateUpdatedLocal, ReasonRequired)
	}
	date, hasClock, err := timeparser.ParseVesselDateTime(dateStr, loc)
	if err != nil {
		return time.Time{}, invalid(FieldDateUpdatedLocal, ReasonInvalidDate)
	}

	now := v.now()
	if timeparser.IsAfterToday(date, now, loc) {
		return time.Time{}, invalid(FieldDateUpdatedLocal, ReasonFutureDate)
	}

	if !hasClock {
		local := now.In(loc)
		y, m, d := date.Date()
		date = time.Date(y, m, d, local.Hour(), local.Minute(), local.Second(), 0, loc)
	}
	return date, ValidationResult{IsValid: true}
}

// Now returns the current instant in the given vessel timezone
func (v *Validator) Now(timezone string) (time.Time, ValidationResult) {
	loc, err := timeparser.LoadVesselLocation(timezone)
	if err != nil {
		return time.Time{}, invalid(FieldTimezone, ReasonInvalidTimezone)
	}
	return v.now().In(loc), ValidationResult{IsValid: true}
}
