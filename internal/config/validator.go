package config

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	componentNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
			switch name {
			case "-":
				return "-"
			case "":
				return field.Name
			}
			return name
		})

		_ = v.RegisterValidation("component_name", func(fl validator.FieldLevel) bool {
			return componentNamePattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// Validator returns the shared validator so component option structs are
// checked with the same custom tags as the document itself.
func Validator() *validator.Validate {
	return validatorInstance()
}

// Validate checks the document schema and returns one error per violation.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{vectorerrors.NewValidationError("config", "configuration is nil", nil)}
	}
	if err := validatorInstance().Struct(cfg); err != nil {
		return convertValidationErrors(err)
	}
	return nil
}

// DecodeOptions maps a component's free-form options onto out and validates
// the result. Unknown keys are rejected.
func DecodeOptions(options map[string]any, out any) error {
	if options == nil {
		options = map[string]any{}
	}

	data, err := yaml.Marshal(options)
	if err != nil {
		return vectorerrors.NewValidationError("options", err.Error(), err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return vectorerrors.NewValidationError("options", strings.TrimPrefix(err.Error(), "yaml: "), err)
	}

	if err := validatorInstance().Struct(out); err != nil {
		return convertValidationErrors(err)[0]
	}
	return nil
}

func convertValidationErrors(err error) []error {
	if err == nil {
		return nil
	}

	ves, ok := err.(validator.ValidationErrors)
	if !ok {
		return []error{vectorerrors.NewValidationError("config", err.Error(), err)}
	}

	out := make([]error, 0, len(ves))
	for _, fe := range ves {
		field := fieldName(fe)
		out = append(out, vectorerrors.NewValidationError(field, describe(fe), err))
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "component_name":
		return fmt.Sprintf("invalid component name %q: only letters, digits, '_' and '-' are allowed", fmt.Sprint(fe.Value()))
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
}
