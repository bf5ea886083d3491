package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report the name the client used, not the Go field name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "param", "json"} {
			if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// ReadAndValidateRequest binds path, query and body into req, fills defaults
// for fields left empty and validates. Failures come back as a 400 AppError.
func ReadAndValidateRequest(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return ValidationFailed([]FieldError{{Code: "ERR_BIND", Message: fmt.Sprint(he.Message)}})
		}
		return ValidationFailed([]FieldError{{Code: "ERR_BIND", Message: err.Error()}})
	}
	if err := defaults.Set(req); err != nil {
		return InternalError("request defaults").WithError(err)
	}

	err := validate.StructCtx(c.Request().Context(), req)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			return InternalError("request validation").WithError(err)
		}
		return nil
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError(fe))
	}
	return ValidationFailed(details)
}

var ruleText = map[string]string{
	"required": "is required",
	"gt":       "must be greater than %s",
	"gte":      "must be greater than or equal to %s",
	"lt":       "must be less than %s",
	"lte":      "must be less than or equal to %s",
	"min":      "must be at least %s",
	"max":      "must be at most %s",
}

func fieldError(fe validator.FieldError) FieldError {
	out := FieldError{
		Code:  "ERR_" + strings.ToUpper(fe.Tag()),
		Field: fe.Field(),
	}

	switch tag := fe.Tag(); tag {
	case "oneof":
		out.Options = strings.Fields(fe.Param())
		out.Message = fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(out.Options, ", "))
	default:
		text, ok := ruleText[tag]
		if !ok {
			out.Message = fmt.Sprintf("%s failed %s", fe.Field(), tag)
			break
		}
		if strings.Contains(text, "%s") {
			out.Limit = fe.Param()
			text = fmt.Sprintf(text, fe.Param())
			if fe.Kind() == reflect.String && (tag == "min" || tag == "max") {
				text += " characters"
			}
		}
		out.Message = fe.Field() + " " + text
	}
	return out
}
