package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a tool payload that failed its struct constraints.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// newValidator returns a validator that names fields by their JSON keys and
// knows the "text" tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("text", validText)
	return v
}

// validText accepts valid UTF-8 without control characters. Tabs and
// newlines are allowed.
func validText(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if r < 32 || r == 127 {
			return false
		}
	}
	return true
}

// validateParams checks params against its validate tags.
func validateParams(v *validator.Validate, params any) error {
	err := v.Struct(params)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return &ValidationError{Message: strings.Join(msgs, "; ")}
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s has more than %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s exceeds maximum length of %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s items", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt", "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "uri":
		return fmt.Sprintf("%s must be a URI", field)
	case "text":
		return fmt.Sprintf("%s contains invalid characters", field)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
