package batchfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/class-scheduler-api/internal/models"
)

// Expected header names, matched case-insensitively. registration_id may be
// empty on "new" rows.
var expectedColumns = []string{"registration_id", "student_id", "instructor_id", "class_id", "start_time", "action"}

// Accepted start-time layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// Format identifies the tabular file format of a batch upload.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatUnknown Format = ""
)

// DetectFormat maps a filename extension to a supported format.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	}
	return FormatUnknown
}

// Parse reads batch rows from the provided reader using the given format.
// The first record must be a header row naming the expected columns.
func Parse(r io.Reader, format Format) ([]models.BatchRow, error) {
	switch format {
	case FormatCSV:
		return parseCSV(r)
	case FormatXLSX:
		return parseXLSX(r)
	}
	return nil, fmt.Errorf("unsupported batch file format %q", format)
}

func parseCSV(r io.Reader) ([]models.BatchRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return recordsToRows(records)
}

func parseXLSX(r io.Reader) ([]models.BatchRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return recordsToRows(records)
}

func recordsToRows(records [][]string) ([]models.BatchRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	index, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}

	rows := make([]models.BatchRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		row, err := recordToRow(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range expectedColumns {
		if required == "registration_id" {
			continue
		}
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	return index, nil
}

func recordToRow(record []string, index map[string]int) (models.BatchRow, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := models.BatchRow{
		TargetID:     field("registration_id"),
		StudentID:    field("student_id"),
		InstructorID: field("instructor_id"),
		ClassID:      field("class_id"),
		Action:       models.RowAction(strings.ToLower(field("action"))),
	}

	raw := field("start_time")
	if raw != "" {
		start, err := parseTime(raw)
		if err != nil {
			return models.BatchRow{}, err
		}
		row.StartTime = start
	}
	return row, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable start_time %q", raw)
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
