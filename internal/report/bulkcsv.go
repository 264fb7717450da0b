package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/septivank/running-hours-ledger/internal/ledger"
	"github.com/spf13/cast"
)

var utf8BOM = []byte("\xef\xbb\xbf")

var requiredImportHeaders = []string{"component_id", "value"}

type bulkCSVRow struct {
	ComponentID   string `csv:"component_id"`
	Value         string `csv:"value"`
	MeterReplaced string `csv:"meter_replaced"`
	OldMeterFinal string `csv:"old_meter_final"`
	NewMeterStart string `csv:"new_meter_start"`
	Comments      string `csv:"comments"`
}

// ReadBulkCSV decodes a bulk import file into ledger rows. Values are kept as
// entered; the ledger decides per row what is blank or invalid.
func ReadBulkCSV(r io.Reader) ([]ledger.BulkRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read bulk csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err == io.EOF {
		return nil, fmt.Errorf("bulk csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bulk csv header: %w", err)
	}
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	for _, h := range requiredImportHeaders {
		if !present[h] {
			return nil, fmt.Errorf("bulk csv is missing column %q", h)
		}
	}

	var records []*bulkCSVRow
	if err := gocsv.UnmarshalBytes(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode bulk csv: %w", err)
	}

	rows := make([]ledger.BulkRow, 0, len(records))
	for i, rec := range records {
		replaced := false
		if s := strings.TrimSpace(rec.MeterReplaced); s != "" {
			replaced, err = cast.ToBoolE(strings.ToLower(s))
			if err != nil {
				// line 1 is the header
				return nil, fmt.Errorf("line %d: meter_replaced %q is not true or false", i+2, s)
			}
		}
		rows = append(rows, ledger.BulkRow{
			ComponentID:   strings.TrimSpace(rec.ComponentID),
			Value:         rec.Value,
			MeterReplaced: replaced,
			OldMeterFinal: rec.OldMeterFinal,
			NewMeterStart: rec.NewMeterStart,
			Comments:      rec.Comments,
		})
	}
	return rows, nil
}
