package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesAppendKindMismatch(t *testing.T) {
	s := NewSeries(FieldInflationRate, "Inflation Rate (%)", KindSignedPercent)
	require.NoError(t, s.Append(MustBounded(KindSignedPercent, 0.02)))

	for _, k := range []Kind{KindNonnegPercent, KindNonnegFloat} {
		err := s.Append(MustBounded(k, 0.5))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTypeKindMismatch))
		assert.Equal(t, 1, s.Len(), "length must be unchanged after a rejected append")
	}
}

func TestSeriesSetBulkValidatesEveryElement(t *testing.T) {
	s := NewSeries("x", "X", KindNonnegPercent)
	require.NoError(t, s.SetBulk([]BoundedValue{MustBounded(KindNonnegPercent, 0.1)}))

	err := s.SetBulk([]BoundedValue{
		MustBounded(KindNonnegPercent, 0.2),
		MustBounded(KindSignedPercent, -0.2),
	})
	require.ErrorIs(t, err, ErrTypeKindMismatch)
	assert.Equal(t, []float64{0.1}, s.Raw(), "failed bulk set must not touch contents")

	err = s.SetBulkRaw([]float64{0.3, 1.3})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []float64{0.1}, s.Raw())

	require.NoError(t, s.SetBulkRaw([]float64{0.3, 0.4}))
	assert.Equal(t, []float64{0.3, 0.4}, s.Raw())
}

func TestSeriesSliceAndConcat(t *testing.T) {
	s := NewSeries("x", "X", KindNonnegPercent)
	require.NoError(t, s.SetBulkRaw([]float64{0.1, 0.2, 0.3, 0.4}))

	sl := s.Slice(1, 3)
	assert.Equal(t, KindNonnegPercent, sl.Kind())
	assert.Equal(t, []float64{0.2, 0.3}, sl.Raw())
	assert.Equal(t, 4, s.Len(), "slicing must not mutate")

	require.NoError(t, sl.AppendRaw(0.9))
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, s.Raw(), "slice must not alias the source")

	joined, err := s.Concat(sl)
	require.NoError(t, err)
	assert.Equal(t, 7, joined.Len())

	other := NewSeries("y", "Y", KindSignedPercent)
	_, err = s.Concat(other)
	require.ErrorIs(t, err, ErrTypeKindMismatch)
}

func TestSeriesAtAndSet(t *testing.T) {
	s := NewSeries("x", "X", KindNonnegFloat)
	require.NoError(t, s.SetBulkRaw([]float64{1, 2, 3}))

	v, ok := s.At(-1)
	require.True(t, ok)
	assert.Equal(t, 3.0, v.Value())
	_, ok = s.At(3)
	assert.False(t, ok)

	require.NoError(t, s.Set(0, MustBounded(KindNonnegFloat, 7)))
	assert.Equal(t, []float64{7, 2, 3}, s.Raw())
	require.ErrorIs(t, s.Set(0, MustBounded(KindNonnegPercent, 0.5)), ErrTypeKindMismatch)
	require.Error(t, s.Set(9, MustBounded(KindNonnegFloat, 1)))
}

func TestSeriesRender(t *testing.T) {
	s := NewSeries(FieldUnemploymentRate, "Unemployment Rate (%)", KindNonnegPercent)
	require.NoError(t, s.SetBulkRaw([]float64{0.05, 0.052}))
	assert.Equal(t, "Unemployment Rate (%): [5.0%, 5.2%]", s.Render())
}
