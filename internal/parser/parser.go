package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"ingestion-service/internal/models"
)

// ErrUnsupportedFormat is returned when the uploaded file extension is not
// one of the supported import formats.
var ErrUnsupportedFormat = fmt.Errorf("unsupported file format: expected .csv, .xlsx or .xls")

// Parse reads an uploaded spreadsheet into rows, dispatching on the file
// extension. The first row is treated as the header; every following row
// becomes a models.Row with a 1-based Index.
func Parse(file io.Reader, filename string) ([]models.Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(file)
	case ".xlsx", ".xls":
		return ParseXLSX(file)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ParseCSV parses a CSV file into rows
func ParseCSV(file io.Reader) ([]models.Row, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		// Emptiness is a validation outcome, not a parse failure.
		return []models.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := normalizeHeaders(headers)

	rows := []models.Row{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", len(rows)+2, err)
		}
		rows = append(rows, buildRow(columns, record, len(rows)+1))
	}

	return rows, nil
}

// ParseXLSX parses an Excel file into rows
func ParseXLSX(file io.Reader) ([]models.Row, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	sheetName := sheets[0]
	// Prefer the "Products" sheet when present; templates also carry an
	// Instructions sheet.
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(excelRows) == 0 {
		return []models.Row{}, nil
	}

	columns := normalizeHeaders(excelRows[0])

	rows := []models.Row{}
	for _, excelRow := range excelRows[1:] {
		rows = append(rows, buildRow(columns, excelRow, len(rows)+1))
	}

	return rows, nil
}

// normalizeHeaders lowercases and trims header cells and strips the " *"
// required marker that template downloads append.
func normalizeHeaders(headers []string) []string {
	columns := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.ToLower(h))
		h = strings.TrimSuffix(h, " *")
		columns[i] = h
	}
	return columns
}

// buildRow maps record values onto the header columns. Short records leave
// trailing columns empty; extra cells beyond the header are dropped.
func buildRow(columns []string, record []string, index int) models.Row {
	cells := make(map[string]string, len(columns))
	for i, col := range columns {
		if col == "" {
			continue
		}
		if i < len(record) {
			cells[col] = strings.TrimSpace(record[i])
		} else {
			cells[col] = ""
		}
	}
	return models.Row{Index: index, Columns: columns, Cells: cells}
}
