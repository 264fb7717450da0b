package report

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
)

// SheetName is the worksheet holding the exported ledger
const SheetName = "Running Hours"

var headers = []string{
	"Vessel",
	"Component",
	"Component Code",
	"Component Category",
	"Running Hours",
	"Last Updated",
	"Utilization Rate (hrs/day)",
	"Notes",
}

// WriteCSV writes the snapshot as CSV with a header line
func WriteCSV(w io.Writer, rows []SnapshotRow) error {
	if rows == nil {
		rows = []SnapshotRow{}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write csv export: %w", err)
	}
	return nil
}

// WriteXLSX writes the snapshot as a single-sheet workbook
func WriteXLSX(w io.Writer, rows []SnapshotRow) error {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SheetName)

	for col, h := range headers {
		f.SetCellValue(SheetName, cellName(col, 1), h)
	}
	if style, err := f.NewStyle(`{"font":{"bold":true}}`); err == nil {
		f.SetCellStyle(SheetName, cellName(0, 1), cellName(len(headers)-1, 1), style)
	}

	for i, row := range rows {
		for col, v := range row.cells() {
			f.SetCellValue(SheetName, cellName(col, i+2), v)
		}
	}
	f.SetColWidth(SheetName, "A", excelize.ToAlphaString(len(headers)-1), 22)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx export: %w", err)
	}
	return nil
}

// cellName builds an A1 reference from a zero-based column and one-based row
func cellName(col, row int) string {
	return fmt.Sprintf("%s%d", excelize.ToAlphaString(col), row)
}
