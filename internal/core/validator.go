package core

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"irricast/internal/types"
)

// Validator wraps go-playground/validator for request parameter structs.
// Field errors are translated to validation_* AppErrors so clients see the
// same taxonomy everywhere.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator using JSON tag names in error output.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct checks the struct's validate tags, returning a
// field-specific AppError for the first failure.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return types.NewAppError(types.ErrCodeValidationBadPayload, "request validation failed", err)
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())

	code := types.ErrCodeValidationBadPayload
	switch field {
	case "lat":
		code = types.ErrCodeValidationInvalidLat
	case "lon":
		code = types.ErrCodeValidationInvalidLon
	case "days":
		code = types.ErrCodeValidationInvalidDays
	}
	if fe.Tag() == "required" {
		code = types.ErrCodeValidationMissingField
	}

	return types.NewAppError(code, "invalid value for "+field, nil).
		WithDetails(map[string]any{"field": field, "constraint": fe.Tag()})
}
