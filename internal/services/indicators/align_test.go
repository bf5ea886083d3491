package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Agentomics/internal/domain/models"
)

func day(d int) time.Time { return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC) }

func indicator(label string, from int, values ...float64) *models.Indicator {
	ind := &models.Indicator{Label: label}
	for i, v := range values {
		ind.Observations = append(ind.Observations, models.Observation{Date: day(from + i), Value: v})
	}
	return ind
}

func TestLongestCommonRangeFullOverlap(t *testing.T) {
	got, ok := LongestCommonRange(
		indicator("A", 1, 1, 2, 3, 4, 5),
		indicator("B", 1, 6, 7, 8, 9, 10),
		indicator("C", 1, 11, 12, 13, 14, 15),
	)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B", "C"}, got.Columns)
	assert.Equal(t, 5, got.Len())
	assert.Equal(t, []float64{1, 6, 11}, got.Rows[0])
	assert.Equal(t, []float64{5, 10, 15}, got.Rows[4])
}

func TestLongestCommonRangePartialOverlap(t *testing.T) {
	got, ok := LongestCommonRange(
		indicator("A", 1, 1, 2, 3, 4, 5),
		indicator("B", 3, 6, 7, 8, 9, 10),
	)
	require.True(t, ok)
	assert.Equal(t, []time.Time{day(3), day(4), day(5)}, got.Dates)
	a, _ := got.Column("A")
	b, _ := got.Column("B")
	assert.Equal(t, []float64{3, 4, 5}, a)
	assert.Equal(t, []float64{6, 7, 8}, b)
}

func TestLongestCommonRangeDisjoint(t *testing.T) {
	_, ok := LongestCommonRange(
		indicator("A", 1, 1, 2, 3),
		indicator("B", 10, 4, 5, 6),
	)
	assert.False(t, ok)

	_, ok = LongestCommonRange()
	assert.False(t, ok)
}

func TestLongestCommonRangeSingleCommonDate(t *testing.T) {
	got, ok := LongestCommonRange(
		indicator("A", 1, 1, 2, 3),
		indicator("B", 3, 30, 40),
	)
	require.True(t, ok)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, day(3), got.Dates[0])
	assert.Equal(t, []float64{3, 30}, got.Rows[0])
}

func TestLongestCommonRangeMissingValuesSplitRuns(t *testing.T) {
	a := indicator("A", 1, 1, 2, 3, 4, 5, 6, 7)
	b := indicator("B", 1, 1, 2, 3, 4, 5, 6, 7)
	b.Observations[2].Missing = true

	got, ok := LongestCommonRange(a, b)
	require.True(t, ok)
	assert.Equal(t, []time.Time{day(4), day(5), day(6), day(7)}, got.Dates)
}

func TestLongestCommonRangeTiesPickEarliest(t *testing.T) {
	a := indicator("A", 1, 1, 2, 3, 4, 5)
	b := indicator("B", 1, 1, 2, 3, 4, 5)
	b.Observations[2].Missing = true

	got, ok := LongestCommonRange(a, b)
	require.True(t, ok)
	assert.Equal(t, []time.Time{day(1), day(2)}, got.Dates)
}
