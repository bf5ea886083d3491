package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the numeric domain of a BoundedValue.
type Kind int

const (
	KindSignedPercent Kind = iota + 1 // [-1, 1]
	KindNonnegPercent                 // [0, 1]
	KindNonnegFloat                   // [0, +inf)
)

func (k Kind) String() string {
	switch k {
	case KindSignedPercent:
		return "SignedPercent"
	case KindNonnegPercent:
		return "NonnegPercent"
	case KindNonnegFloat:
		return "NonnegFloat"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Domain returns the interval notation of the kind.
func (k Kind) Domain() string {
	switch k {
	case KindSignedPercent:
		return "[-1, 1]"
	case KindNonnegPercent:
		return "[0, 1]"
	case KindNonnegFloat:
		return "[0, +inf)"
	default:
		return "{}"
	}
}

// Contains reports whether v satisfies the kind's predicate.
func (k Kind) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	switch k {
	case KindSignedPercent:
		return v >= -1 && v <= 1
	case KindNonnegPercent:
		return v >= 0 && v <= 1
	case KindNonnegFloat:
		return v >= 0
	default:
		return false
	}
}

// Bounds returns the closed interval of the kind. NonnegFloat is unbounded above.
func (k Kind) Bounds() (lo, hi float64) {
	switch k {
	case KindSignedPercent:
		return -1, 1
	case KindNonnegPercent:
		return 0, 1
	default:
		return 0, math.MaxFloat64
	}
}

// Clamp forces v into the kind's domain. NaN clamps to zero.
func (k Kind) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	lo, hi := k.Bounds()
	return math.Max(lo, math.Min(hi, v))
}

// IsPercent reports whether values of the kind are percentages as decimals.
func (k Kind) IsPercent() bool {
	return k == KindSignedPercent || k == KindNonnegPercent
}

// BoundedValue is an immutable scalar whose domain is fixed by its Kind.
// The zero value is not valid; build values with NewBounded or a kind constructor.
type BoundedValue struct {
	kind  Kind
	value float64
}

// NewBounded validates v against kind.
func NewBounded(kind Kind, v float64) (BoundedValue, error) {
	if !kind.Contains(v) {
		return BoundedValue{}, &ValidationError{Kind: kind, Value: v}
	}
	return BoundedValue{kind: kind, value: v}, nil
}

func SignedPercent(v float64) (BoundedValue, error) { return NewBounded(KindSignedPercent, v) }

func NonnegPercent(v float64) (BoundedValue, error) { return NewBounded(KindNonnegPercent, v) }

func NonnegFloat(v float64) (BoundedValue, error) { return NewBounded(KindNonnegFloat, v) }

// MustBounded is NewBounded for literals known to be valid.
func MustBounded(kind Kind, v float64) BoundedValue {
	b, err := NewBounded(kind, v)
	if err != nil {
		panic(err)
	}
	return b
}

func (b BoundedValue) Kind() Kind { return b.kind }

func (b BoundedValue) Value() float64 { return b.value }

// Equal compares underlying values.
func (b BoundedValue) Equal(o BoundedValue) bool { return b.value == o.value }

// Compare orders by underlying value: -1, 0 or +1.
func (b BoundedValue) Compare(o BoundedValue) int {
	switch {
	case b.value < o.value:
		return -1
	case b.value > o.value:
		return 1
	default:
		return 0
	}
}

// String renders percentages as "xx.x%" and plain floats with %.4g.
func (b BoundedValue) String() string {
	if b.kind.IsPercent() {
		return strconv.FormatFloat(b.value*100, 'f', 1, 64) + "%"
	}
	return fmt.Sprintf("%.4g", b.value)
}

func (b BoundedValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.value)
}
