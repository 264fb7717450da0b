package mq_test

import (
	"encoding/json"
	"testing"

	"github.com/septivank/running-hours-ledger/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunningHoursEvent_AnomalyReasonAlwaysPresent(t *testing.T) {
	event := mq.RunningHoursEvent{
		RequestID:    "req-1",
		ComponentID:  "ME-1",
		CumulativeRH: 520,
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"anomaly_reason":null`)
	assert.Contains(t, string(body), `"meter_replaced":false`)

	reason := "more than 24h added in one day"
	event.AnomalyReason = &reason
	body, err = json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, reason, decoded["anomaly_reason"])
}

func TestRejectedEvent_OptionalFields(t *testing.T) {
	single, err := json.Marshal(mq.RejectedEvent{
		RequestID: "req-2",
		UserID:    "chief.engineer",
		Kind:      "validation",
		Reason:    "mode is not supported",
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(single, &decoded))
	assert.NotContains(t, decoded, "row")
	assert.NotContains(t, decoded, "component_id")
	assert.NotContains(t, decoded, "field")
	assert.Equal(t, "mode is not supported", decoded["reason"])

	first := 0
	bulk, err := json.Marshal(mq.RejectedEvent{
		RequestID:   "req-3",
		ComponentID: "DG-2",
		Row:         &first,
		Kind:        "validation",
		Field:       "value",
		Reason:      "value must be a number",
	})
	require.NoError(t, err)
	assert.Contains(t, string(bulk), `"row":0`)
	assert.Contains(t, string(bulk), `"component_id":"DG-2"`)
	assert.Contains(t, string(bulk), `"field":"value"`)
}
