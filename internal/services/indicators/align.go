package indicators

import (
	"math"
	"sort"
	"time"

	"Agentomics/internal/domain/models"
)

// LongestCommonRange merges the indicators on their dates and returns the
// longest run of consecutive merged dates on which every indicator has a
// value. Ties go to the earliest run. ok is false when no date is covered by
// every indicator.
//
// Runs are consecutive in the merged, sorted date list, not in calendar time:
// a date missing from every input does not break a run. When an indicator
// repeats a date, its last observation wins.
func LongestCommonRange(series ...*models.Indicator) (*models.AlignedRange, bool) {
	if len(series) == 0 {
		return nil, false
	}

	byDate := make(map[int64][]float64)
	present := make(map[int64][]bool)
	for j, ind := range series {
		for _, o := range ind.Observations {
			k := dayKey(o.Date)
			if _, ok := byDate[k]; !ok {
				byDate[k] = make([]float64, len(series))
				present[k] = make([]bool, len(series))
			}
			if o.Missing || math.IsNaN(o.Value) {
				present[k][j] = false
				continue
			}
			byDate[k][j] = o.Value
			present[k][j] = true
		}
	}

	keys := make([]int64, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	bestStart, bestLen := -1, 0
	runStart := -1
	for i := 0; i <= len(keys); i++ {
		complete := i < len(keys) && all(present[keys[i]])
		switch {
		case complete && runStart < 0:
			runStart = i
		case !complete && runStart >= 0:
			if n := i - runStart; n > bestLen {
				bestStart, bestLen = runStart, n
			}
			runStart = -1
		}
	}
	if bestLen == 0 {
		return nil, false
	}

	out := &models.AlignedRange{
		Dates:   make([]time.Time, bestLen),
		Columns: make([]string, len(series)),
		Rows:    make([][]float64, bestLen),
	}
	for j, ind := range series {
		out.Columns[j] = ind.Label
	}
	for i := 0; i < bestLen; i++ {
		k := keys[bestStart+i]
		out.Dates[i] = time.Unix(k, 0).UTC()
		out.Rows[i] = append([]float64(nil), byDate[k]...)
	}
	return out, true
}

func dayKey(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func all(xs []bool) bool {
	for _, x := range xs {
		if !x {
			return false
		}
	}
	return true
}
