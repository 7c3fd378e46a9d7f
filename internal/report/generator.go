package report

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"edalens/internal/dataset"
)

// previewRows is the number of head rows shown in the overview widget
const previewRows = 5

// Generator derives Reports from parsed tables
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a report generator
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		logger: logger.With(slog.String("component", "report_generator")),
	}
}

// Generate computes every view of the report. The views are independent of
// one another, so they run concurrently; each one reads the table and writes
// only its own field of the report.
func (g *Generator) Generate(ctx context.Context, t *dataset.Table) (*Report, error) {
	start := time.Now()

	rep := &Report{
		Shape: Shape{Rows: t.Rows(), Cols: t.Cols()},
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		rep.Columns, rep.NumericColumns, rep.CategoricalColumns = schema(t)
		rep.Preview = preview(t)
		return nil
	})

	eg.Go(func() error {
		rep.Summary = summarize(t)
		return nil
	})

	eg.Go(func() error {
		rep.Correlation = correlate(t)
		return nil
	})

	eg.Go(func() error {
		rep.Missing = missingCounts(t)
		return nil
	})

	eg.Go(func() error {
		rep.Duplicates = duplicates(t)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "report generated",
		slog.Int("rows", rep.Shape.Rows),
		slog.Int("cols", rep.Shape.Cols),
		slog.Int("numeric_columns", rep.NumericColumns),
		slog.Int("duplicate_rows", rep.Duplicates.Count),
		slog.Duration("duration", time.Since(start)))

	return rep, nil
}

// schema builds the per-column dtype/non-null view and the kind tallies
func schema(t *dataset.Table) ([]ColumnInfo, int, int) {
	cols := t.Columns()
	infos := make([]ColumnInfo, len(cols))
	numeric := 0

	for i := range cols {
		infos[i] = ColumnInfo{
			Name:    cols[i].Name,
			Dtype:   cols[i].Kind.String(),
			NonNull: cols[i].NonNull(),
		}
		if cols[i].Kind == dataset.KindNumeric {
			numeric++
		}
	}

	return infos, numeric, len(cols) - numeric
}

// preview takes the first rows for the overview table
func preview(t *dataset.Table) Preview {
	n := t.Rows()
	if n > previewRows {
		n = previewRows
	}

	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = t.Row(i)
	}

	return Preview{Columns: t.Header(), Rows: rows}
}

// summarize computes describe()-style statistics for each numeric column
func summarize(t *dataset.Table) []NumericSummary {
	var summaries []NumericSummary

	for _, col := range t.NumericColumns() {
		values := sortedCopy(col.Floats())
		s := NumericSummary{
			Column: col.Name,
			Count:  len(values),
			Mean:   Float(mean(values)),
			Std:    Float(sampleStd(values)),
			Min:    Float(quantile(values, 0)),
			Q1:     Float(quantile(values, 0.25)),
			Median: Float(quantile(values, 0.5)),
			Q3:     Float(quantile(values, 0.75)),
			Max:    Float(quantile(values, 1)),
		}
		summaries = append(summaries, s)
	}

	return summaries
}

// correlate computes the pairwise-complete Pearson matrix over numeric
// columns. Fewer than two numeric columns yields the explicit
// not-applicable marker.
func correlate(t *dataset.Table) CorrelationMatrix {
	numeric := t.NumericColumns()
	if len(numeric) < 2 {
		return CorrelationMatrix{Applicable: false}
	}

	names := make([]string, len(numeric))
	values := make([][]float64, len(numeric))
	valid := make([][]bool, len(numeric))
	for i, col := range numeric {
		names[i] = col.Name
		values[i], valid[i] = col.Values()
	}

	matrix := make([][]Float, len(numeric))
	for i := range numeric {
		matrix[i] = make([]Float, len(numeric))
		for j := range numeric {
			if j < i {
				matrix[i][j] = matrix[j][i]
				continue
			}
			matrix[i][j] = Float(pairwisePearson(values[i], valid[i], values[j], valid[j]))
		}
	}

	return CorrelationMatrix{Applicable: true, Columns: names, Values: matrix}
}

// pairwisePearson correlates two columns over rows where both are present
func pairwisePearson(x []float64, xValid []bool, y []float64, yValid []bool) float64 {
	var xs, ys []float64
	for i := range x {
		if xValid[i] && yValid[i] {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	return pearson(xs, ys)
}

// missingCounts tallies absent cells per column
func missingCounts(t *dataset.Table) []MissingCount {
	cols := t.Columns()
	counts := make([]MissingCount, len(cols))
	for i := range cols {
		counts[i] = MissingCount{Column: cols[i].Name, Count: cols[i].Missing()}
	}
	return counts
}

// duplicates counts rows whose full value tuple matches an earlier row,
// keeping the later occurrences for display
func duplicates(t *dataset.Table) Duplicates {
	seen := make(map[string]struct{}, t.Rows())
	var dup Duplicates

	for i := 0; i < t.Rows(); i++ {
		row := t.Row(i)
		key := rowKey(row)
		if _, ok := seen[key]; ok {
			dup.Count++
			dup.Rows = append(dup.Rows, row)
			continue
		}
		seen[key] = struct{}{}
	}

	return dup
}

// rowKey encodes a row so keys collide only when every cell matches. Cells
// are length-prefixed because any separator byte can legally appear inside
// CSV cell text.
func rowKey(row []string) string {
	var b strings.Builder
	for _, cell := range row {
		b.WriteString(strconv.Itoa(len(cell)))
		b.WriteByte(':')
		b.WriteString(cell)
	}
	return b.String()
}
