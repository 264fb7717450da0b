// Package utilization derives running-hours utilization rates (hours/day)
// from a component's recorded cumulative history.
package utilization

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
)

// Sample is one accepted cumulative running-hours value
type Sample struct {
	At           time.Time
	CumulativeRH float64
}

// Strategy computes hours/day from history. ok is false when no rate can be
// derived; callers render that as unavailable, never as zero.
type Strategy func(history []Sample) (rate float64, ok bool)

// Strategy names accepted by ByName
const (
	StrategyDelta      = "delta"
	StrategyRegression = "regression"
)

// ByName returns the strategy configured under name
func ByName(name string) (Strategy, error) {
	switch name {
	case StrategyDelta, "":
		return SimpleDelta, nil
	case StrategyRegression:
		return LeastSquares, nil
	default:
		return nil, fmt.Errorf("unknown utilization strategy '%s'", name)
	}
}

func sorted(history []Sample) []Sample {
	out := make([]Sample, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func days(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func usable(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate >= 0
}

// SimpleDelta divides the hours gained between the first and last sample by
// the calendar days between them
func SimpleDelta(history []Sample) (float64, bool) {
	if len(history) < 2 {
		return 0, false
	}
	h := sorted(history)
	first, last := h[0], h[len(h)-1]

	span := days(first.At, last.At)
	if span <= 0 {
		return 0, false
	}

	rate := (last.CumulativeRH - first.CumulativeRH) / span
	if !usable(rate) {
		return 0, false
	}
	return rate, true
}

// LeastSquares fits a line through cumulative hours over days and returns its slope
func LeastSquares(history []Sample) (float64, bool) {
	if len(history) < 3 {
		return 0, false
	}
	h := sorted(history)
	origin := h[0].At

	series := make(stats.Series, 0, len(h))
	for _, s := range h {
		series = append(series, stats.Coordinate{X: days(origin, s.At), Y: s.CumulativeRH})
	}

	span := series[len(series)-1].X - series[0].X
	if span <= 0 {
		return 0, false
	}

	fit, err := stats.LinearRegression(series)
	if err != nil || len(fit) < 2 {
		return 0, false
	}

	rate := (fit[len(fit)-1].Y - fit[0].Y) / (fit[len(fit)-1].X - fit[0].X)
	if !usable(rate) {
		return 0, false
	}
	return rate, true
}
