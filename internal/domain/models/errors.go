package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrTypeKindMismatch   = errors.New("type kind mismatch")
	ErrStructuralDecision = errors.New("structural decision error")
	ErrShapeMismatch      = errors.New("shape mismatch")
	ErrUnderflow          = errors.New("round counter underflow")
)

// ValidationError reports a scalar outside the domain of its kind.
type ValidationError struct {
	Kind  Kind
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s does not accept %v (domain %s)", ErrValidation, e.Kind, e.Value, e.Kind.Domain())
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// KindMismatchError reports a value of the wrong kind offered to a series.
type KindMismatchError struct {
	Series string
	Want   Kind
	Got    Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("%v: series %s holds %s, got %s", ErrTypeKindMismatch, e.Series, e.Want, e.Got)
}

func (e *KindMismatchError) Is(target error) bool { return target == ErrTypeKindMismatch }

// StructuralDecisionError reports a role result that failed schema validation.
type StructuralDecisionError struct {
	Role   Role
	Fields []string
	Err    error
}

func (e *StructuralDecisionError) Error() string {
	var b strings.Builder
	b.WriteString(ErrStructuralDecision.Error())
	b.WriteString(": role ")
	b.WriteString(e.Role.String())
	if len(e.Fields) > 0 {
		b.WriteString(" fields [")
		b.WriteString(strings.Join(e.Fields, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StructuralDecisionError) Is(target error) bool { return target == ErrStructuralDecision }

func (e *StructuralDecisionError) Unwrap() error { return e.Err }

// ShapeMismatchError reports series of diverging lengths.
type ShapeMismatchError struct {
	Lengths map[string]int
}

func (e *ShapeMismatchError) Error() string {
	parts := make([]string, 0, len(e.Lengths))
	for _, id := range FieldOrder() {
		if n, ok := e.Lengths[id]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", id, n))
		}
	}
	return fmt.Sprintf("%v: series lengths diverge (%s)", ErrShapeMismatch, strings.Join(parts, ", "))
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }
