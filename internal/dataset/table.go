// Package dataset holds the in-memory table model built from an uploaded
// file. A Table lives for exactly one upload: it is created from raw bytes,
// handed to the report generator, and replaced wholesale by the next upload.
package dataset

import (
	"strconv"
	"strings"
	"time"
)

// Kind classifies a column after type inference
type Kind int

const (
	KindText Kind = iota
	KindNumeric
	KindBoolean
	KindTemporal
)

// String returns the dtype name used in schema views
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindTemporal:
		return "temporal"
	default:
		return "text"
	}
}

// temporalLayouts are the accepted date formats, tried in order
var temporalLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// Column is a single named, typed column. Cells are stored as the trimmed
// source text; an empty cell is a missing value regardless of kind.
type Column struct {
	Name  string
	Kind  Kind
	cells []string
}

// Len returns the number of rows in the column
func (c *Column) Len() int {
	return len(c.cells)
}

// Cell returns the raw cell text at row i
func (c *Column) Cell(i int) string {
	return c.cells[i]
}

// IsMissing reports whether the cell at row i is absent
func (c *Column) IsMissing(i int) bool {
	return c.cells[i] == ""
}

// Missing returns the count of absent cells
func (c *Column) Missing() int {
	n := 0
	for _, cell := range c.cells {
		if cell == "" {
			n++
		}
	}
	return n
}

// NonNull returns the count of present cells
func (c *Column) NonNull() int {
	return len(c.cells) - c.Missing()
}

// Floats returns the present numeric values in row order.
// Only meaningful for KindNumeric columns.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.cells))
	for _, cell := range c.cells {
		if cell == "" {
			continue
		}
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// Values returns all numeric values aligned to rows, with a validity mask.
// Missing cells carry a false mask entry. Used for pairwise correlation,
// which must drop a row only when either side is missing.
func (c *Column) Values() ([]float64, []bool) {
	values := make([]float64, len(c.cells))
	valid := make([]bool, len(c.cells))
	for i, cell := range c.cells {
		if cell == "" {
			continue
		}
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			values[i] = v
			valid[i] = true
		}
	}
	return values, valid
}

// Table is an ordered collection of equal-length named columns
type Table struct {
	columns []Column
	rows    int
}

// Rows returns the row count
func (t *Table) Rows() int {
	return t.rows
}

// Cols returns the column count
func (t *Table) Cols() int {
	return len(t.columns)
}

// Columns returns the columns in source order
func (t *Table) Columns() []Column {
	return t.columns
}

// Column returns the first column with the given name
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.columns {
		if t.columns[i].Name == name {
			return &t.columns[i], true
		}
	}
	return nil, false
}

// Header returns the column names in order
func (t *Table) Header() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Row returns the raw cells of row i in column order
func (t *Table) Row(i int) []string {
	row := make([]string, len(t.columns))
	for j := range t.columns {
		row[j] = t.columns[j].cells[i]
	}
	return row
}

// NumericColumns returns the numeric columns in source order
func (t *Table) NumericColumns() []*Column {
	var numeric []*Column
	for i := range t.columns {
		if t.columns[i].Kind == KindNumeric {
			numeric = append(numeric, &t.columns[i])
		}
	}
	return numeric
}

// inferKind classifies a column from its non-empty cells. A kind is assigned
// only if every non-empty cell coerces; columns with no non-empty cells stay
// text.
func inferKind(cells []string) Kind {
	canNumeric, canBoolean, canTemporal := true, true, true
	seen := false

	for _, cell := range cells {
		if cell == "" {
			continue
		}
		seen = true

		if canNumeric {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				canNumeric = false
			}
		}
		if canBoolean && !isBooleanCell(cell) {
			canBoolean = false
		}
		if canTemporal && !isTemporalCell(cell) {
			canTemporal = false
		}

		if !canNumeric && !canBoolean && !canTemporal {
			return KindText
		}
	}

	switch {
	case !seen:
		return KindText
	case canNumeric:
		return KindNumeric
	case canBoolean:
		return KindBoolean
	case canTemporal:
		return KindTemporal
	default:
		return KindText
	}
}

func isBooleanCell(cell string) bool {
	switch strings.ToLower(cell) {
	case "true", "false":
		return true
	}
	return false
}

func isTemporalCell(cell string) bool {
	for _, layout := range temporalLayouts {
		if _, err := time.Parse(layout, cell); err == nil {
			return true
		}
	}
	return false
}
