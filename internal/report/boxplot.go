package report

import (
	"errors"
	"fmt"
	"math"

	"edalens/internal/dataset"
)

// Errors surfaced by on-demand boxplot computation
var (
	// ErrColumnNotFound marks a boxplot request for a column the table lacks
	ErrColumnNotFound = errors.New("report: column not found")
	// ErrColumnNotNumeric marks a boxplot request for a non-numeric column
	ErrColumnNotNumeric = errors.New("report: column is not numeric")
	// ErrNoValues marks a numeric column whose cells are all missing
	ErrNoValues = errors.New("report: column has no non-missing values")
)

// iqrFactor is the whisker multiplier; values beyond Q1/Q3 ± 1.5×IQR are
// flagged as outliers
const iqrFactor = 1.5

// BoxplotFor computes the five-number summary and IQR outliers for one
// numeric column. Pure: the same table and column always yield the same
// result, so the dropdown can call it on every selection change.
func BoxplotFor(t *dataset.Table, column string) (*Boxplot, error) {
	col, ok := t.Column(column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	if col.Kind != dataset.KindNumeric {
		return nil, fmt.Errorf("%w: %q is %s", ErrColumnNotNumeric, column, col.Kind)
	}

	values := sortedCopy(col.Floats())
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoValues, column)
	}

	q1 := quantile(values, 0.25)
	q3 := quantile(values, 0.75)
	iqr := q3 - q1
	lowerBound := q1 - iqrFactor*iqr
	upperBound := q3 + iqrFactor*iqr

	box := &Boxplot{
		Column:   column,
		Count:    len(values),
		Min:      Float(values[0]),
		Q1:       Float(q1),
		Median:   Float(quantile(values, 0.5)),
		Q3:       Float(q3),
		Max:      Float(values[len(values)-1]),
		Outliers: []float64{},
	}

	// Whiskers reach the most extreme values inside the bounds. Values
	// between Q1 and Q3 are always inside, so both whiskers get set.
	lowerWhisker := math.Inf(1)
	upperWhisker := math.Inf(-1)
	for _, v := range values {
		if v < lowerBound || v > upperBound {
			box.Outliers = append(box.Outliers, v)
			continue
		}
		if v < lowerWhisker {
			lowerWhisker = v
		}
		if v > upperWhisker {
			upperWhisker = v
		}
	}

	box.LowerWhisker = Float(lowerWhisker)
	box.UpperWhisker = Float(upperWhisker)

	return box, nil
}
