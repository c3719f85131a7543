package validator

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator is a validator that validates the given struct.
type Validator interface {
	// Validate validates the given struct
	Validate(s any) error
}

type DefaultValidator struct {
	v *validator.Validate
}

// NewDefaultValidator creates a new default validator.
// It returns a new DefaultValidator and an error if the validator registration fails.
func NewDefaultValidator() (*DefaultValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// decimal.Decimal is a struct, so expose it as its string form to let
	// field tags run on it.
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	if err := v.RegisterValidation("enum", validateEnum); err != nil {
		return nil, fmt.Errorf("register enum validator: %w", err)
	}

	if err := v.RegisterValidation("dgt", validateDecimalGreaterThan); err != nil {
		return nil, fmt.Errorf("register dgt validator: %w", err)
	}

	if err := v.RegisterValidation("dgte", validateDecimalGreaterOrEqual); err != nil {
		return nil, fmt.Errorf("register dgte validator: %w", err)
	}

	return &DefaultValidator{v: v}, nil
}

// MustNewDefaultValidator is like NewDefaultValidator but panics on registration failure.
func MustNewDefaultValidator() *DefaultValidator {
	v, err := NewDefaultValidator()
	if err != nil {
		panic(err)
	}
	return v
}

func (v DefaultValidator) Validate(s any) error {
	return v.v.Struct(s)
}

func ValidationErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return fmt.Sprintf("must be a date in the format %s", fe.Param())
	case "json":
		return "must be valid JSON"
	case "enum":
		return fmt.Sprintf("invalid enum value: %v", fe.Value())
	case "dgt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "dgte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		return "is invalid"
	}
}

func validateEnum(fl validator.FieldLevel) bool {
	type Enum interface {
		Validate() error
	}

	value, ok := fl.Field().Interface().(Enum)
	if !ok {
		return false
	}

	return value.Validate() == nil
}

func validateDecimalGreaterThan(fl validator.FieldLevel) bool {
	d, bound, ok := decimalFieldAndParam(fl)
	if !ok {
		return false
	}
	return d.GreaterThan(bound)
}

func validateDecimalGreaterOrEqual(fl validator.FieldLevel) bool {
	d, bound, ok := decimalFieldAndParam(fl)
	if !ok {
		return false
	}
	return d.GreaterThanOrEqual(bound)
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func decimalFieldAndParam(fl validator.FieldLevel) (decimal.Decimal, decimal.Decimal, bool) {
	bound := decimal.Zero
	if p := fl.Param(); p != "" {
		b, err := decimal.NewFromString(p)
		if err != nil {
			return decimal.Decimal{}, decimal.Decimal{}, false
		}
		bound = b
	}

	field := fl.Field()
	if field.Kind() != reflect.String {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(field.String())
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return d, bound, true
}
