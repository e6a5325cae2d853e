package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration value.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationErrors holds every problem found by Validate, so users can fix
// them in one pass.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Error implements the error interface for the collection
func (ves ValidationErrors) Error() string {
	if len(ves.Errors) == 0 {
		return "no configuration errors"
	}

	if len(ves.Errors) == 1 {
		return "invalid configuration: " + ves.Errors[0].Error()
	}

	parts := make([]string, 0, len(ves.Errors))
	for _, e := range ves.Errors {
		parts = append(parts, e.Error())
	}
	return fmt.Sprintf("%d configuration errors: %s", len(ves.Errors), strings.Join(parts, "; "))
}

// HasErrors returns true if there are any errors in the collection
func (ves *ValidationErrors) HasErrors() bool {
	return len(ves.Errors) > 0
}

func (ves *ValidationErrors) add(field, format string, args ...any) {
	ves.Errors = append(ves.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}
