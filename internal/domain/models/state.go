package models

import (
	"fmt"
	"strings"
)

// GlobalState aggregates one freshly allocated instance of every knob group
// and the number of rounds left to simulate.
type GlobalState struct {
	EconomicVariables *EconomicVariables
	CentralBankKnobs  *CentralBankKnobs
	BigBankKnobs      *BigBankKnobs
	SmallBankKnobs    *SmallBankKnobs

	remaining int
}

// NewGlobalState creates an empty state with rounds quarters left to simulate.
func NewGlobalState(rounds int) *GlobalState {
	if rounds < 0 {
		rounds = 0
	}
	return &GlobalState{
		EconomicVariables: NewEconomicVariables(),
		CentralBankKnobs:  NewCentralBankKnobs(),
		BigBankKnobs:      NewBigBankKnobs(),
		SmallBankKnobs:    NewSmallBankKnobs(),
		remaining:         rounds,
	}
}

// Groups returns the knob groups in render order.
func (s *GlobalState) Groups() []KnobGroup {
	return []KnobGroup{s.EconomicVariables, s.CentralBankKnobs, s.BigBankKnobs, s.SmallBankKnobs}
}

// Group returns the group owned by role.
func (s *GlobalState) Group(role Role) (KnobGroup, bool) {
	for _, g := range s.Groups() {
		if g.Owner() == role {
			return g, true
		}
	}
	return nil, false
}

// AllSeries returns every series in group-then-declaration order.
func (s *GlobalState) AllSeries() []*Series {
	out := make([]*Series, 0, len(fieldSpecs))
	for _, g := range s.Groups() {
		out = append(out, g.Series()...)
	}
	return out
}

// SeriesByID finds a series by its stable identifier.
func (s *GlobalState) SeriesByID(id string) (*Series, bool) {
	for _, sr := range s.AllSeries() {
		if sr.ID() == id {
			return sr, true
		}
	}
	return nil, false
}

func (s *GlobalState) RemainingRounds() int { return s.remaining }

// SetRemainingRounds resets the counter, used once before a run.
func (s *GlobalState) SetRemainingRounds(n int) error {
	if n < 0 {
		return fmt.Errorf("remaining rounds must be >= 0, got %d", n)
	}
	s.remaining = n
	return nil
}

// DecrementRound consumes one round.
func (s *GlobalState) DecrementRound() error {
	if s.remaining <= 0 {
		return ErrUnderflow
	}
	s.remaining--
	return nil
}

// Quarters returns the common length of every series.
func (s *GlobalState) Quarters() (int, error) {
	lengths := make(map[string]int, len(fieldSpecs))
	n, equal := -1, true
	for _, sr := range s.AllSeries() {
		lengths[sr.ID()] = sr.Len()
		if n == -1 {
			n = sr.Len()
		} else if sr.Len() != n {
			equal = false
		}
	}
	if !equal {
		return 0, &ShapeMismatchError{Lengths: lengths}
	}
	return n, nil
}

// RenderReport renders every group and its series in a fixed order.
func (s *GlobalState) RenderReport() string {
	parts := make([]string, 0, 4)
	for _, g := range s.Groups() {
		parts = append(parts, g.Render())
	}
	return strings.Join(parts, "\n")
}

// ToTable builds one row per quarter and one column per series.
func (s *GlobalState) ToTable() (*Table, error) {
	n, err := s.Quarters()
	if err != nil {
		return nil, err
	}
	series := s.AllSeries()
	t := &Table{Columns: make([]string, len(series)), Rows: make([][]float64, n)}
	raws := make([][]float64, len(series))
	for j, sr := range series {
		t.Columns[j] = sr.ID()
		raws[j] = sr.Raw()
	}
	for i := 0; i < n; i++ {
		row := make([]float64, len(series))
		for j := range series {
			row[j] = raws[j][i]
		}
		t.Rows[i] = row
	}
	return t, nil
}

// Clone returns a deep copy sharing no series with s.
func (s *GlobalState) Clone() *GlobalState {
	c := NewGlobalState(s.remaining)
	c.CentralBankKnobs.InterestRateGoal = s.CentralBankKnobs.InterestRateGoal
	src, dst := s.AllSeries(), c.AllSeries()
	for i := range src {
		dst[i].values = src[i].clone().values
	}
	return c
}

// Seed maps series id to its initial history.
type Seed map[string][]float64

// Seed initializes every series. All fields must be present with the same
// non-zero length; nothing is written unless every value validates.
func (s *GlobalState) Seed(seed Seed) error {
	n := -1
	for _, id := range FieldOrder() {
		vals, ok := seed[id]
		if !ok {
			return fmt.Errorf("seed: missing series %s", id)
		}
		if n == -1 {
			n = len(vals)
		} else if len(vals) != n {
			return fmt.Errorf("seed: %w", &ShapeMismatchError{Lengths: seed.lengths()})
		}
	}
	if n == 0 {
		return fmt.Errorf("seed: at least one quarter is required")
	}
	for id := range seed {
		if _, ok := LookupField(id); !ok {
			return fmt.Errorf("seed: unknown series %s", id)
		}
	}

	staged := make(map[string][]BoundedValue, len(seed))
	for _, f := range fieldSpecs {
		vals := make([]BoundedValue, 0, n)
		for i, raw := range seed[f.ID] {
			v, err := NewBounded(f.Kind, raw)
			if err != nil {
				return fmt.Errorf("seed %s[%d]: %w", f.ID, i, err)
			}
			vals = append(vals, v)
		}
		staged[f.ID] = vals
	}
	for _, sr := range s.AllSeries() {
		if err := sr.SetBulk(staged[sr.ID()]); err != nil {
			return fmt.Errorf("seed %s: %w", sr.ID(), err)
		}
	}
	return nil
}

func (seed Seed) lengths() map[string]int {
	out := make(map[string]int, len(seed))
	for id, vals := range seed {
		out[id] = len(vals)
	}
	return out
}

// DefaultSeed is the three-quarter history of a high-inflation scenario.
func DefaultSeed() Seed {
	return Seed{
		FieldGDPGrowthRate:              {0.03, 0.025, 0.02},
		FieldUnemploymentRate:           {0.05, 0.05, 0.05},
		FieldInflationRate:              {0.025, 0.03, 0.035},
		FieldTargetInterestRate:         {0.02, 0.025, 0.03},
		FieldSecuritiesHoldingsPcChange: {0.01, 0.015, 0.02},
		FieldLoanToDepositRatio:         {0.8, 0.75, 0.7},
		FieldDepositInterestRate:        {0.01, 0.015, 0.02},
		FieldLoansInterestRate:          {0.04, 0.045, 0.05},
		FieldConsumerLoanFocus:          {0.6, 0.65, 0.7},
	}
}

func (s *GlobalState) resolve(d Decision) ([]*Series, []BoundedValue, error) {
	if d == nil {
		return nil, nil, fmt.Errorf("nil decision")
	}
	values := d.Values()
	fields := FieldsOf(d.Role())
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("role %s owns no series", d.Role())
	}
	series := make([]*Series, 0, len(fields))
	bounded := make([]BoundedValue, 0, len(fields))
	for _, f := range fields {
		raw, ok := values[f.ID]
		if !ok {
			return nil, nil, &StructuralDecisionError{Role: d.Role(), Fields: []string{f.ID}, Err: fmt.Errorf("missing field")}
		}
		v, err := NewBounded(f.Kind, raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", f.ID, err)
		}
		sr, _ := s.SeriesByID(f.ID)
		series = append(series, sr)
		bounded = append(bounded, v)
	}
	return series, bounded, nil
}

// Stage appends the values of one decision to the owner's series. It is used
// on a cloned working view to render intra-round snapshots.
func (s *GlobalState) Stage(d Decision) error {
	series, vals, err := s.resolve(d)
	if err != nil {
		return err
	}
	for i, sr := range series {
		if err := sr.Append(vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// CommitRound appends one value to every series. Every decision of the round is
// validated before the first append, so either all series grow by one or none do.
func (s *GlobalState) CommitRound(r *Round) error {
	if _, err := s.Quarters(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if missing := r.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, role := range missing {
			names[i] = role.String()
		}
		return fmt.Errorf("commit: incomplete round, missing %s", strings.Join(names, ", "))
	}

	var (
		series []*Series
		vals   []BoundedValue
	)
	for _, d := range r.Decisions() {
		sr, v, err := s.resolve(d)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		series = append(series, sr...)
		vals = append(vals, v...)
	}
	if len(series) != len(fieldSpecs) {
		return fmt.Errorf("commit: round covers %d of %d series", len(series), len(fieldSpecs))
	}
	for i, sr := range series {
		if sr.Kind() != vals[i].Kind() {
			return fmt.Errorf("commit: %w", &KindMismatchError{Series: sr.ID(), Want: sr.Kind(), Got: vals[i].Kind()})
		}
	}
	for i, sr := range series {
		sr.values = append(sr.values, vals[i])
	}
	return nil
}
