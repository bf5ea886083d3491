package models

import "time"

// RoundCommitted is emitted once per committed quarter.
type RoundCommitted struct {
	RunID       string             `json:"run_id"`
	Quarter     int                `json:"quarter"`
	Remaining   int                `json:"remaining"`
	Mode        string             `json:"mode"`
	Values      map[string]float64 `json:"values"`
	Attempts    map[string]int     `json:"attempts"`
	CommittedAt time.Time          `json:"committed_at"`
}

// Observation is one dated value of an external indicator. Missing marks a
// date the source reported without a value.
type Observation struct {
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
	Missing bool      `json:"missing,omitempty"`
}

// Indicator is a labeled external time series, e.g. a FRED series.
type Indicator struct {
	Label        string        `json:"label"`
	Observations []Observation `json:"observations"`
}

// AlignedRange is a block of dates on which every indicator has a value.
type AlignedRange struct {
	Dates   []time.Time `json:"dates"`
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

func (a *AlignedRange) Len() int { return len(a.Dates) }

// Column returns the values of one indicator over the range.
func (a *AlignedRange) Column(label string) ([]float64, bool) {
	for j, c := range a.Columns {
		if c == label {
			out := make([]float64, len(a.Rows))
			for i, row := range a.Rows {
				out[i] = row[j]
			}
			return out, true
		}
	}
	return nil, false
}
