package report

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edalens/internal/dataset"
)

func newTestGenerator() *Generator {
	return NewGenerator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustTable(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	table, err := dataset.ParseCSV([]byte(csv))
	require.NoError(t, err)
	return table
}

func TestGenerateShapeAndDuplicates(t *testing.T) {
	// Worked example: 3 rows, 2 columns, one exact duplicate row
	table := mustTable(t, "a,b\n1,2\n1,2\n3,4\n")

	rep, err := newTestGenerator().Generate(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, Shape{Rows: 3, Cols: 2}, rep.Shape)
	assert.Equal(t, 1, rep.Duplicates.Count)
	assert.Equal(t, [][]string{{"1", "2"}}, rep.Duplicates.Rows)
	assert.Equal(t, []MissingCount{{Column: "a"}, {Column: "b"}}, rep.Missing)
}

func TestGenerateDuplicateCountMatchesDistinctRows(t *testing.T) {
	table := mustTable(t, "x\n1\n1\n1\n2\n2\n3\n")

	rep, err := newTestGenerator().Generate(context.Background(), table)
	require.NoError(t, err)

	// duplicates = rows - distinct row tuples
	assert.Equal(t, 6-3, rep.Duplicates.Count)
}

func TestGenerateDuplicatesDistinguishCellBoundaries(t *testing.T) {
	// Cells may contain arbitrary bytes, including control characters; rows
	// whose concatenated text matches but whose cell split differs are
	// distinct tuples, not duplicates
	table := mustTable(t, "a,b\n\"a\x1fb\",c\na,\"b\x1fc\"\n")

	rep, err := newTestGenerator().Generate(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Duplicates.Count)
	assert.Empty(t, rep.Duplicates.Rows)
}

func TestGenerateMissingCounts(t *testing.T) {
	table := mustTable(t, "a,b\n1,\n,x\n3,y\n")

	rep, err := newTestGenerator().Generate(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, []MissingCount{
		{Column: "a", Count: 1},
		{Column: "b", Count: 1},
	}, rep.Missing)
}

func TestGenerateSchemaAndPreview(t *testing.T) {
	table := mustTable(t, "n,s\n1,alpha\n2,beta\n3,gamma\n4,delta\n5,epsilon\n6,zeta\n")

	rep, err := newTestGenerator().Generate(context.Background(), table)
	require.NoError(t, err)

	require.Len(t, rep.Columns, 2)
	assert.Equal(t, ColumnInfo{Name: "n", Dtype: "numeric", NonNull: 6}, rep.Columns[0])
	assert.Equal(t, ColumnInfo{Name: "s", Dtype: "text", NonNull: 6}, rep.Columns[1])
	assert.Equal(t, 1, rep.NumericColumns)
	assert.Equal(t, 1, rep.CategoricalColumns)

	// Preview caps at five rows
	assert.Len(t, rep.Preview.Rows, 5)
	assert.Equal(t, []string{"1", "alpha"}, rep.Preview.Rows[0])
}

func TestGenerateCorrelationSymmetricWithUnitDiagonal(t *testing.T) {
	table := mustTable(t, "a,b,c\n1,2,10\n2,4,8\n3,6,6\n4,8,4\n")

	rep, err := newTestGenerator().Generate(context.Background(), table)
	require.NoError(t, err)

	corr := rep.Correlation
	require.True(t, corr.Applicable)
	require.Equal(t, []string{"a", "b", "c"}, corr.Columns)

	for i := range corr.Values {
		assert.InDelta(t, 1.0, float64(corr.Values[i][i]), 1e-9)
		for j := range corr.Values {
			assert.InDelta(t, float64(corr.Values[j][i]), float64(corr.Values[i][j]), 1e-9)
		}
	}

	// a and b are perfectly correlated, a and c perfectly anti-correlated
	assert.InDelta(t, 1.0, float64(corr.Values[0][1]), 1e-9)
	assert.InDelta(t, -1.0, float64(corr.Values[0][2]), 1e-9)
}

func TestGenerateCorrelationNotApplicable(t *testing.T) {
	// One numeric and one text column: correlation is explicitly marked
	// not applicable, everything else still renders
	table := mustTable(t, "num,label\n1,x\n2,y\n3,z\n")

	rep, err := newTestGenerator().Generate(context.Background(), table)
	require.NoError(t, err)

	assert.False(t, rep.Correlation.Applicable)
	assert.Empty(t, rep.Correlation.Columns)
	assert.Empty(t, rep.Correlation.Values)
	assert.Len(t, rep.Summary, 1)
}

func TestGenerateZeroVarianceCorrelationIsNaN(t *testing.T) {
	table := mustTable(t, "a,b\n1,5\n2,5\n3,5\n")

	rep, err := newTestGenerator().Generate(context.Background(), table)
	require.NoError(t, err)

	require.True(t, rep.Correlation.Applicable)
	assert.True(t, math.IsNaN(float64(rep.Correlation.Values[0][1])))
	assert.True(t, math.IsNaN(float64(rep.Correlation.Values[1][1])))
}

func TestGenerateSummaryStatistics(t *testing.T) {
	table := mustTable(t, "v\n1\n2\n3\n4\n5\n")

	rep, err := newTestGenerator().Generate(context.Background(), table)
	require.NoError(t, err)

	require.Len(t, rep.Summary, 1)
	s := rep.Summary[0]
	assert.Equal(t, "v", s.Column)
	assert.Equal(t, 5, s.Count)
	assert.InDelta(t, 3.0, float64(s.Mean), 1e-9)
	assert.InDelta(t, 1.0, float64(s.Min), 1e-9)
	assert.InDelta(t, 2.0, float64(s.Q1), 1e-9)
	assert.InDelta(t, 3.0, float64(s.Median), 1e-9)
	assert.InDelta(t, 4.0, float64(s.Q3), 1e-9)
	assert.InDelta(t, 5.0, float64(s.Max), 1e-9)
	assert.InDelta(t, math.Sqrt(2.5), float64(s.Std), 1e-9)
}

func TestGenerateIsIdempotent(t *testing.T) {
	raw := "a,b\n1,2\n3,4\n5,6\n"
	gen := newTestGenerator()

	first, err := gen.Generate(context.Background(), mustTable(t, raw))
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), mustTable(t, raw))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
