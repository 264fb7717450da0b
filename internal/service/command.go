package service

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Command kinds
const (
	KindSingle = "single"
	KindBulk   = "bulk"
)

// Command is a running-hours command consumed from RabbitMQ
type Command struct {
	RequestID string         `json:"request_id"`
	UserID    string         `json:"user_id"`
	Kind      string         `json:"kind"`
	Mode      string         `json:"mode"`
	Timezone  string         `json:"timezone"`
	Update    *UpdateCommand `json:"update,omitempty"`
	Rows      []RowCommand   `json:"rows,omitempty"`
}

// UpdateCommand is the payload of a single update
type UpdateCommand struct {
	ComponentID      string    `json:"component_id"`
	Value            FormValue `json:"value"`
	DateUpdatedLocal string    `json:"date_updated_local"`
	MeterReplaced    bool      `json:"meter_replaced"`
	OldMeterFinal    FormValue `json:"old_meter_final"`
	NewMeterStart    FormValue `json:"new_meter_start"`
	Comments         string    `json:"comments"`
}

// RowCommand is one row of a bulk update
type RowCommand struct {
	ComponentID   string    `json:"component_id"`
	Value         FormValue `json:"value"`
	MeterReplaced bool      `json:"meter_replaced"`
	OldMeterFinal FormValue `json:"old_meter_final"`
	NewMeterStart FormValue `json:"new_meter_start"`
	Comments      string    `json:"comments"`
}

// FormValue keeps a numeric field as entered. Producers may send a JSON
// string or a JSON number; null and absent decode as blank.
type FormValue string

// UnmarshalJSON implements json.Unmarshaler
func (v *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		*v = FormValue(data)
	default:
		return fmt.Errorf("value must be a string or number, got %s", data)
	}
	return nil
}

// DecodeCommand parses a command message body
func DecodeCommand(body []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command: %w", err)
	}
	return &cmd, nil
}
