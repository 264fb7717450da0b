package anomaly_test

import (
	"testing"
	"time"

	"github.com/septivank/running-hours-ledger/internal/anomaly"
	"github.com/stretchr/testify/assert"
)

const testMaxHoursPerDay = 24.0

var base = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestDetectAnomaly_NegativeValue(t *testing.T) {
	detector := anomaly.NewDetector(testMaxHoursPerDay)

	isAnomaly, reason := detector.DetectAnomaly(anomaly.Reading{
		PreviousRH:   500,
		CumulativeRH: 480,
		PreviousAt:   base,
		At:           base.Add(24 * time.Hour),
	})

	assert.True(t, isAnomaly)
	assert.Contains(t, reason, "negative running hours")
}

func TestDetectAnomaly_MoreHoursThanElapsed(t *testing.T) {
	detector := anomaly.NewDetector(testMaxHoursPerDay)

	isAnomaly, reason := detector.DetectAnomaly(anomaly.Reading{
		PreviousRH:   500,
		CumulativeRH: 550,
		PreviousAt:   base,
		At:           base.Add(24 * time.Hour),
	})

	assert.True(t, isAnomaly)
	assert.Contains(t, reason, "exceeds 24.00 hours")
}

func TestDetectAnomaly_NormalValue(t *testing.T) {
	detector := anomaly.NewDetector(testMaxHoursPerDay)

	isAnomaly, reason := detector.DetectAnomaly(anomaly.Reading{
		PreviousRH:   500,
		CumulativeRH: 520,
		PreviousAt:   base,
		At:           base.Add(24 * time.Hour),
	})

	assert.False(t, isAnomaly, reason)
}

func TestDetectAnomaly_ReducedDailyLimit(t *testing.T) {
	detector := anomaly.NewDetector(12)

	isAnomaly, _ := detector.DetectAnomaly(anomaly.Reading{
		PreviousRH:   500,
		CumulativeRH: 520,
		PreviousAt:   base,
		At:           base.Add(24 * time.Hour),
	})

	assert.True(t, isAnomaly)
}

func TestDetectAnomaly_FirstReading(t *testing.T) {
	detector := anomaly.NewDetector(testMaxHoursPerDay)

	isAnomaly, _ := detector.DetectAnomaly(anomaly.Reading{
		PreviousRH:   0,
		CumulativeRH: 12000,
		At:           base,
	})

	assert.False(t, isAnomaly)
}

func TestDetectAnomaly_BackdatedUpdate(t *testing.T) {
	detector := anomaly.NewDetector(testMaxHoursPerDay)

	isAnomaly, reason := detector.DetectAnomaly(anomaly.Reading{
		PreviousRH:   500,
		CumulativeRH: 510,
		PreviousAt:   base,
		At:           base.Add(-48 * time.Hour),
	})

	assert.True(t, isAnomaly)
	assert.Contains(t, reason, "before previous update")
}

func TestDetectAnomaly_MeterReplacement(t *testing.T) {
	detector := anomaly.NewDetector(testMaxHoursPerDay)

	isAnomaly, _ := detector.DetectAnomaly(anomaly.Reading{
		PreviousRH:    100,
		CumulativeRH:  120,
		PreviousAt:    base,
		At:            base.Add(24 * time.Hour),
		MeterReplaced: true,
	})

	assert.False(t, isAnomaly)
}

func TestNewDetector_DefaultsNonPositiveLimit(t *testing.T) {
	detector := anomaly.NewDetector(0)

	isAnomaly, _ := detector.DetectAnomaly(anomaly.Reading{
		PreviousRH:   500,
		CumulativeRH: 524,
		PreviousAt:   base,
		At:           base.Add(24 * time.Hour),
	})

	assert.False(t, isAnomaly)
}
