package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"Agentomics/internal/domain/models"
)

// OutOfRangePolicy decides what happens to a well-formed result whose values
// fall outside their kind's domain.
type OutOfRangePolicy string

const (
	OutOfRangeRetry OutOfRangePolicy = "retry"
	OutOfRangeAbort OutOfRangePolicy = "abort"
	OutOfRangeClamp OutOfRangePolicy = "clamp"
)

func ParseOutOfRangePolicy(s string) (OutOfRangePolicy, error) {
	switch p := OutOfRangePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case OutOfRangeRetry, OutOfRangeAbort, OutOfRangeClamp:
		return p, nil
	case "":
		return OutOfRangeRetry, nil
	default:
		return "", fmt.Errorf("unknown out-of-range policy %q", s)
	}
}

// Verdict is the outcome of checking one role result.
type Verdict struct {
	Decision models.Decision
	// Clamped lists the fields that were pulled back into range.
	Clamped []string
}

// DecisionValidator checks role results against their schema tags.
type DecisionValidator struct {
	v      *validator.Validate
	policy OutOfRangePolicy
}

func NewDecisionValidator(policy OutOfRangePolicy) *DecisionValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if policy == "" {
		policy = OutOfRangeRetry
	}
	return &DecisionValidator{v: v, policy: policy}
}

func (dv *DecisionValidator) Policy() OutOfRangePolicy { return dv.policy }

// Check validates d as the result of role. Structural problems (nil result,
// wrong role, missing fields) are always retryable. Out-of-range values follow
// the policy; under OutOfRangeAbort the returned error is permanent.
func (dv *DecisionValidator) Check(role models.Role, d models.Decision) (*Verdict, error) {
	if d == nil || (reflect.ValueOf(d).Kind() == reflect.Ptr && reflect.ValueOf(d).IsNil()) {
		return nil, &models.StructuralDecisionError{Role: role, Err: errors.New("empty result")}
	}
	if d.Role() != role {
		return nil, &models.StructuralDecisionError{Role: role, Err: fmt.Errorf("got a %s result", d.Role())}
	}

	err := dv.v.Struct(d)
	if err == nil {
		return &Verdict{Decision: d}, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, &models.StructuralDecisionError{Role: role, Err: err}
	}

	var missing, outOfRange []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "gte", "lte", "gt", "lt", "min", "max":
			outOfRange = append(outOfRange, fe.Field())
		default:
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		return nil, &models.StructuralDecisionError{Role: role, Fields: missing, Err: errors.New("missing or malformed")}
	}

	values := d.Values()
	switch dv.policy {
	case OutOfRangeClamp:
		for _, id := range outOfRange {
			f, _ := models.LookupField(id)
			values[id] = f.Kind.Clamp(values[id])
		}
		clamped, err := models.DecisionFromValues(role, values)
		if err != nil {
			return nil, err
		}
		return &Verdict{Decision: clamped, Clamped: outOfRange}, nil
	default:
		id := outOfRange[0]
		f, _ := models.LookupField(id)
		serr := &models.StructuralDecisionError{
			Role:   role,
			Fields: outOfRange,
			Err:    &models.ValidationError{Kind: f.Kind, Value: values[id]},
		}
		if dv.policy == OutOfRangeAbort {
			return nil, permanent(serr)
		}
		return nil, serr
	}
}
