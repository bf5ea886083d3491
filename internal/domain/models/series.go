package models

import (
	"fmt"
	"strings"
)

// Series is an append-only, kind-homogeneous sequence of BoundedValue.
type Series struct {
	id     string
	label  string
	kind   Kind
	values []BoundedValue
}

// NewSeries creates an empty series. id is the stable machine identifier used
// as the export column name, label is the display name.
func NewSeries(id, label string, kind Kind) *Series {
	return &Series{id: id, label: label, kind: kind}
}

func (s *Series) ID() string    { return s.id }
func (s *Series) Label() string { return s.label }
func (s *Series) Kind() Kind    { return s.kind }
func (s *Series) Len() int      { return len(s.values) }

func (s *Series) checkKind(v BoundedValue) error {
	if v.Kind() != s.kind {
		return &KindMismatchError{Series: s.id, Want: s.kind, Got: v.Kind()}
	}
	return nil
}

// Append adds v at the end of the series.
func (s *Series) Append(v BoundedValue) error {
	if err := s.checkKind(v); err != nil {
		return err
	}
	s.values = append(s.values, v)
	return nil
}

// AppendRaw validates f against the series kind and appends it.
func (s *Series) AppendRaw(f float64) error {
	v, err := NewBounded(s.kind, f)
	if err != nil {
		return err
	}
	s.values = append(s.values, v)
	return nil
}

// SetBulk replaces the contents after every element has been checked.
func (s *Series) SetBulk(values []BoundedValue) error {
	for _, v := range values {
		if err := s.checkKind(v); err != nil {
			return err
		}
	}
	s.values = append(make([]BoundedValue, 0, len(values)), values...)
	return nil
}

// SetBulkRaw is SetBulk for raw numbers.
func (s *Series) SetBulkRaw(raw []float64) error {
	values := make([]BoundedValue, 0, len(raw))
	for _, f := range raw {
		v, err := NewBounded(s.kind, f)
		if err != nil {
			return fmt.Errorf("series %s: %w", s.id, err)
		}
		values = append(values, v)
	}
	s.values = values
	return nil
}

// Set replaces the element at i.
func (s *Series) Set(i int, v BoundedValue) error {
	if err := s.checkKind(v); err != nil {
		return err
	}
	if i < 0 || i >= len(s.values) {
		return fmt.Errorf("series %s: index %d out of range [0,%d)", s.id, i, len(s.values))
	}
	s.values[i] = v
	return nil
}

// At returns the element at i; negative indexes count from the end.
func (s *Series) At(i int) (BoundedValue, bool) {
	if i < 0 {
		i += len(s.values)
	}
	if i < 0 || i >= len(s.values) {
		return BoundedValue{}, false
	}
	return s.values[i], true
}

// Last returns the most recent element.
func (s *Series) Last() (BoundedValue, bool) { return s.At(-1) }

// Slice returns a new series of the same kind over [from, to).
func (s *Series) Slice(from, to int) *Series {
	if from < 0 {
		from = 0
	}
	if to > len(s.values) {
		to = len(s.values)
	}
	out := NewSeries(s.id, s.label, s.kind)
	if from < to {
		out.values = append(out.values, s.values[from:to]...)
	}
	return out
}

// Concat returns a new series holding s followed by o.
func (s *Series) Concat(o *Series) (*Series, error) {
	if o.kind != s.kind {
		return nil, &KindMismatchError{Series: s.id, Want: s.kind, Got: o.kind}
	}
	out := NewSeries(s.id, s.label, s.kind)
	out.values = make([]BoundedValue, 0, len(s.values)+len(o.values))
	out.values = append(out.values, s.values...)
	out.values = append(out.values, o.values...)
	return out, nil
}

// Values returns a copy of the elements.
func (s *Series) Values() []BoundedValue {
	return append([]BoundedValue(nil), s.values...)
}

// Raw strips the BoundedValue wrapper, preserving order.
func (s *Series) Raw() []float64 {
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		out[i] = v.Value()
	}
	return out
}

// Render returns "<label>: [v1, v2, ...]" using each value's human form.
func (s *Series) Render() string {
	parts := make([]string, len(s.values))
	for i, v := range s.values {
		parts[i] = v.String()
	}
	return s.label + ": [" + strings.Join(parts, ", ") + "]"
}

func (s *Series) clone() *Series {
	out := NewSeries(s.id, s.label, s.kind)
	out.values = append([]BoundedValue(nil), s.values...)
	return out
}
