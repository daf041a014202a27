package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report koanf paths (database.host) instead of Go field names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg against its struct tags. Every failing field is
// reported as a *ConfigError joined into the returned error.
func Validate(cfg *Config) error {
	err := structValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := make([]error, 0, len(validationErrors))
	for _, fe := range validationErrors {
		errs = append(errs, toConfigError(fe))
	}
	return errors.Join(errs...)
}

func toConfigError(fe validator.FieldError) *ConfigError {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_with":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fe.Value()), strings.Fields(fe.Param()))
	case "gte", "lte":
		return NewInvalidFieldError(field, fmt.Sprintf("out of range (%s %s)", fe.Tag(), fe.Param()), nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %q validation", fe.Tag()), nil)
	}
}
