package api

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	ierrors "github.com/jrsteele09/dropzone-client/internal/errors"
)

var validate = validator.New()

// Validate checks a request payload before it is sent. Failures are
// *errors.ValidationError, never an HTTP error.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ierrors.ValidationError{Field: strings.ToLower(fe.Field()), Reason: fe.Tag()}
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	return &ierrors.ValidationError{Field: "payload", Reason: err.Error()}
}
