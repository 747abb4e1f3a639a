package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validationError carries per-field messages for the error response.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string {
	keys := make([]string, 0, len(e.fields))
	for k, v := range e.fields {
		keys = append(keys, k+": "+v)
	}
	return "invalid request: " + strings.Join(keys, "; ")
}

// validateStruct checks s against its validate tags.
func validateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			fields[field] = "this field is required"
		case "max":
			fields[field] = fmt.Sprintf("must be at most %s characters", e.Param())
		case "min", "gte":
			fields[field] = fmt.Sprintf("must be at least %s", e.Param())
		case "lte":
			fields[field] = fmt.Sprintf("must be at most %s", e.Param())
		default:
			fields[field] = "invalid value"
		}
	}
	return &validationError{fields: fields}
}

// fieldsOf extracts field messages from a validation failure, if any.
func fieldsOf(err error) map[string]string {
	var v *validationError
	if errors.As(err, &v) {
		return v.fields
	}
	return nil
}
