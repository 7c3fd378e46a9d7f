package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxplotForFiveNumberSummary(t *testing.T) {
	table := mustTable(t, "v\n1\n2\n3\n4\n5\n6\n7\n8\n")

	box, err := BoxplotFor(table, "v")
	require.NoError(t, err)

	assert.Equal(t, "v", box.Column)
	assert.Equal(t, 8, box.Count)
	assert.InDelta(t, 1.0, float64(box.Min), 1e-9)
	assert.InDelta(t, 2.75, float64(box.Q1), 1e-9)
	assert.InDelta(t, 4.5, float64(box.Median), 1e-9)
	assert.InDelta(t, 6.25, float64(box.Q3), 1e-9)
	assert.InDelta(t, 8.0, float64(box.Max), 1e-9)
	assert.Empty(t, box.Outliers)
	assert.InDelta(t, 1.0, float64(box.LowerWhisker), 1e-9)
	assert.InDelta(t, 8.0, float64(box.UpperWhisker), 1e-9)
}

func TestBoxplotForFlagsOutliers(t *testing.T) {
	// 100 is far beyond Q3 + 1.5*IQR of the remaining values
	table := mustTable(t, "v\n1\n2\n3\n4\n5\n100\n")

	box, err := BoxplotFor(table, "v")
	require.NoError(t, err)

	assert.Equal(t, []float64{100}, box.Outliers)
	assert.InDelta(t, 5.0, float64(box.UpperWhisker), 1e-9)
}

func TestBoxplotForSkipsMissingCells(t *testing.T) {
	// Second column keeps the blank row from being dropped by the CSV
	// reader, so v genuinely has a missing cell
	table := mustTable(t, "v,w\n1,a\n,b\n3,c\n")

	box, err := BoxplotFor(table, "v")
	require.NoError(t, err)
	assert.Equal(t, 2, box.Count)
	assert.InDelta(t, 1.0, float64(box.Min), 1e-9)
	assert.InDelta(t, 3.0, float64(box.Max), 1e-9)
}

func TestBoxplotForErrors(t *testing.T) {
	table := mustTable(t, "n,s\n1,a\n2,b\n")

	_, err := BoxplotFor(table, "missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, err = BoxplotFor(table, "s")
	assert.ErrorIs(t, err, ErrColumnNotNumeric)
}
