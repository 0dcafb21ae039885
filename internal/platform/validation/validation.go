// Package validation adapts go-playground/validator to echo and maps its
// failures onto apperr.ValidationError with JSON field paths.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
)

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("dgt0", func(fl validator.FieldLevel) bool {
		d, ok := asDecimal(fl.Field())
		return ok && d.IsPositive()
	})
	_ = v.RegisterValidation("dgte0", func(fl validator.FieldLevel) bool {
		d, ok := asDecimal(fl.Field())
		return ok && !d.IsNegative()
	})
	_ = v.RegisterValidation("dpercent", func(fl validator.FieldLevel) bool {
		d, ok := asDecimal(fl.Field())
		return ok && !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(100))
	})
	return &Validator{v: v}
}

func asDecimal(f reflect.Value) (decimal.Decimal, bool) {
	switch val := f.Interface().(type) {
	case decimal.Decimal:
		return val, true
	case *decimal.Decimal:
		if val == nil {
			return decimal.Decimal{}, false
		}
		return *val, true
	}
	return decimal.Decimal{}, false
}

// Validate checks struct tags and returns a *apperr.ValidationError keyed by
// JSON path, e.g. "items[1].quantity".
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Validation("body", err.Error())
	}
	out := &apperr.ValidationError{}
	for _, fe := range ve {
		out.Add(fieldPath(fe), message(fe))
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid", "uuid4":
		return "must be a UUID"
	case "dgt0":
		return "must be greater than 0"
	case "dgte0":
		return "must not be negative"
	case "dpercent":
		return "must be between 0 and 100"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Bind decodes the request body into dst and validates it. Decoding
// problems surface as a validation error on "body".
func Bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return apperr.Validation("body", fmt.Sprint(he.Message))
		}
		return apperr.Validation("body", err.Error())
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dst)
}

// ParamUUID parses the named path parameter as a UUID.
func ParamUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation(name, "must be a UUID")
	}
	return id, nil
}
