package common

import (
	"fmt"
	"os"
	"strings"
)

// FlagValidator collects flag problems so they can be reported together
type FlagValidator struct {
	errors []string
}

func NewFlagValidator() *FlagValidator {
	return &FlagValidator{
		errors: make([]string, 0),
	}
}

// ValidateFile checks that a file exists
func (v *FlagValidator) ValidateFile(name, path string, required bool) *FlagValidator {
	if path == "" {
		if required {
			v.errors = append(v.errors, fmt.Sprintf("%s is required", name))
		}
		return v
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		v.errors = append(v.errors, fmt.Sprintf("%s file does not exist: %s", name, path))
	case err == nil && info.IsDir():
		v.errors = append(v.errors, fmt.Sprintf("%s is a directory: %s", name, path))
	}
	return v
}

// ValidateChoice checks that value is one of choices
func (v *FlagValidator) ValidateChoice(name, value string, choices []string) *FlagValidator {
	for _, choice := range choices {
		if value == choice {
			return v
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of [%s], got: %s", name, strings.Join(choices, ", "), value))
	return v
}

// AddError adds a custom validation error
func (v *FlagValidator) AddError(message string) *FlagValidator {
	v.errors = append(v.errors, message)
	return v
}

func (v *FlagValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// GetError returns all validation errors as one error
func (v *FlagValidator) GetError() error {
	if len(v.errors) == 0 {
		return nil
	}

	if len(v.errors) == 1 {
		return fmt.Errorf("validation error: %s", v.errors[0])
	}

	return fmt.Errorf("validation errors:\n  - %s", strings.Join(v.errors, "\n  - "))
}
