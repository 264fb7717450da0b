package timeparser

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/araddon/dateparse"
)

// DisplayLayout is the vessel-local form dates are shown and exported in
const DisplayLayout = "02-Jan-2006 15:04"

// LoadVesselLocation resolves an IANA timezone name supplied with a reading
func LoadVesselLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("timezone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone '%s': %w", name, err)
	}
	return loc, nil
}

type layout struct {
	format   string
	hasClock bool
}

var layouts = []layout{
	{"2006-01-02", false},         // YYYY-MM-DD
	{"02/01/2006", false},         // DD/MM/YYYY
	{"02/01/2006 15:04:05", true}, // DD/MM/YYYY HH:mm:ss
	{"02-Jan-2006", false},        // display form without time
	{DisplayLayout, true},
	{time.RFC3339, true},
}

// ParseVesselDate attempts to parse a vessel-local date with multiple formats
func ParseVesselDate(dateStr string, loc *time.Location) (time.Time, error) {
	t, _, err := ParseVesselDateTime(dateStr, loc)
	return t, err
}

// ParseVesselDateTime is ParseVesselDate that also reports whether the input
// carried a time of day, so an explicit midnight can be told from a bare date
func ParseVesselDateTime(dateStr string, loc *time.Location) (t time.Time, hasClock bool, err error) {
	dateStr = strings.TrimSpace(dateStr)

	for _, l := range layouts {
		parsed, perr := time.ParseInLocation(l.format, dateStr, loc)
		if perr == nil {
			return parsed.In(loc), l.hasClock, nil
		}
	}

	t, err = dateparse.ParseIn(dateStr, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse date '%s': %w", dateStr, err)
	}
	t = t.In(loc)
	hasClock = strings.Contains(dateStr, ":") ||
		t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0
	return t, hasClock, nil
}

// IsAfterToday reports whether date falls on a calendar day strictly after
// the current day in loc
func IsAfterToday(date, now time.Time, loc *time.Location) bool {
	dy, dm, dd := date.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	day := time.Date(dy, dm, dd, 0, 0, 0, 0, loc)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, loc)
	return day.After(today)
}

// FormatVesselDisplay renders t in the display form for its own location
func FormatVesselDisplay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayLayout)
}
