package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is the singleton validator instance
	validate *validator.Validate
)

func init() {
	validate = validator.New()
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidateRequest validates s and returns one message per failed field, in
// declaration order. An empty result means the request is well formed.
func ValidateRequest(s interface{}) []string {
	err := ValidateStruct(s)
	if err == nil {
		return nil
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Messages
	}
	return []string{err.Error()}
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message  string
	Messages []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, fieldMessage(err.Field(), err.Tag(), err.Param()))
	}

	return &ValidationError{
		Message:  "Validation failed",
		Messages: messages,
	}
}

func fieldMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s field is not a valid e-mail address.", field)
	case "min":
		return fmt.Sprintf("The field %s must have a minimum length of '%s'.", field, param)
	case "max":
		return fmt.Sprintf("The field %s must have a maximum length of '%s'.", field, param)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}
