// Package validator plugs go-playground/validator into echo.
package validator

import (
	"reflect"
	"strings"

	domainerrors "bikeshare/internal/domain/errors"

	playground "github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// CustomValidator implements echo.Validator
type CustomValidator struct {
	validate *playground.Validate
}

// New returns a validator that reports fields by their JSON names
func New() *CustomValidator {
	validate := playground.New(playground.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return &CustomValidator{validate: validate}
}

// Validate checks struct tags and reports the first failure as ErrValidationFailed
func (v *CustomValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var validationErrs playground.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return errors.Wrap(domainerrors.ErrValidationFailed, err.Error())
	}

	return errors.Wrap(domainerrors.ErrValidationFailed, describe(validationErrs[0]))
}

func describe(e playground.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return field + ": field is required"
	case "gte", "min":
		return field + ": must be at least " + e.Param()
	case "lte", "max":
		return field + ": must not exceed " + e.Param()
	case "required_with", "required_without":
		return field + ": must be given together with " + e.Param()
	case "latitude", "longitude":
		return field + ": must be a valid " + e.Tag()
	default:
		return field + ": validation failed (" + e.Tag() + ")"
	}
}
