package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Sentinel errors surfaced to the transport layer
var (
	// ErrParse marks content that cannot be decoded into a table
	ErrParse = errors.New("dataset: content is not valid delimited text")
	// ErrEmpty marks a table with zero rows or zero columns
	ErrEmpty = errors.New("dataset: table has no rows or no columns")
)

// Parse decodes raw upload bytes into a Table, dispatching on the file
// extension. XLSX workbooks go through excelize, everything else is treated
// as CSV text.
func Parse(filename string, raw []byte) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ParseWorkbook(raw)
	default:
		return ParseCSV(raw)
	}
}

// ParseCSV decodes CSV bytes into a Table. The first record is the header;
// every following record must have the same field count.
func ParseCSV(raw []byte) (*Table, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrParse)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return build(records)
}

// build assembles a Table from decoded records and runs type inference
func build(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrEmpty)
	}

	header := records[0]
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: zero columns", ErrEmpty)
	}

	data := records[1:]
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: zero rows", ErrEmpty)
	}

	columns := make([]Column, len(header))
	for j, name := range header {
		cells := make([]string, len(data))
		for i, record := range data {
			cells[i] = strings.TrimSpace(record[j])
		}
		columns[j] = Column{
			Name:  strings.TrimSpace(name),
			Kind:  inferKind(cells),
			cells: cells,
		}
	}

	return &Table{columns: columns, rows: len(data)}, nil
}
