// Package report derives the descriptive views rendered by the frontend:
// shape, schema, summary statistics, Pearson correlation, missing-value
// counts, duplicate rows, and on-demand boxplots. Every view is a pure
// projection of a dataset.Table; generating the same table twice yields an
// identical Report.
package report

import (
	"encoding/json"
	"math"
)

// Float is a float64 that marshals NaN as JSON null. Zero-variance
// correlations and the standard deviation of a single observation are NaN
// and must survive the trip to the frontend.
type Float float64

// MarshalJSON implements json.Marshaler
func (f Float) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// Shape is the (rows, columns) pair of the source table
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// ColumnInfo describes one column of the schema view
type ColumnInfo struct {
	Name    string `json:"name"`
	Dtype   string `json:"dtype"`
	NonNull int    `json:"non_null"`
}

// NumericSummary carries describe()-style statistics for one numeric column
type NumericSummary struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
	Mean   Float  `json:"mean"`
	Std    Float  `json:"std"`
	Min    Float  `json:"min"`
	Q1     Float  `json:"q1"`
	Median Float  `json:"median"`
	Q3     Float  `json:"q3"`
	Max    Float  `json:"max"`
}

// CorrelationMatrix is the Pearson matrix over numeric columns. When fewer
// than two numeric columns exist, Applicable is false and the matrix is
// omitted rather than emitted empty.
type CorrelationMatrix struct {
	Applicable bool      `json:"applicable"`
	Columns    []string  `json:"columns,omitempty"`
	Values     [][]Float `json:"values,omitempty"`
}

// MissingCount is the per-column count of absent cells
type MissingCount struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// Duplicates carries the duplicate-row count and the duplicated rows
// themselves for display. A row is a duplicate when its full value tuple
// exactly matches an earlier row's.
type Duplicates struct {
	Count int        `json:"count"`
	Rows  [][]string `json:"rows,omitempty"`
}

// Preview is the head of the table shown in the overview widget
type Preview struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Report bundles every derived view for one upload
type Report struct {
	Shape              Shape             `json:"shape"`
	Columns            []ColumnInfo      `json:"columns"`
	NumericColumns     int               `json:"numeric_columns"`
	CategoricalColumns int               `json:"categorical_columns"`
	Preview            Preview           `json:"preview"`
	Summary            []NumericSummary  `json:"summary"`
	Correlation        CorrelationMatrix `json:"correlation"`
	Missing            []MissingCount    `json:"missing"`
	Duplicates         Duplicates        `json:"duplicates"`
}

// Boxplot is the five-number summary plus IQR outliers for one numeric
// column, computed on demand for the dropdown widget.
type Boxplot struct {
	Column       string    `json:"column"`
	Count        int       `json:"count"`
	Min          Float     `json:"min"`
	Q1           Float     `json:"q1"`
	Median       Float     `json:"median"`
	Q3           Float     `json:"q3"`
	Max          Float     `json:"max"`
	LowerWhisker Float     `json:"lower_whisker"`
	UpperWhisker Float     `json:"upper_whisker"`
	Outliers     []float64 `json:"outliers"`
}
