package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers normware-specific validation rules.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("sqlite_path", validateSQLitePath); err != nil {
		return fmt.Errorf("failed to register sqlite_path validator: %w", err)
	}
	return nil
}

// validateSQLitePath accepts ":memory:" or a path that is not a directory.
func validateSQLitePath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == ":memory:" {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return os.IsNotExist(err)
	}
	return !info.IsDir()
}

// Validate checks c against its struct tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors joins validator errors into one readable message.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "dir":
		return fmt.Sprintf("%s must be an existing directory", field)
	case "sqlite_path":
		return fmt.Sprintf("%s must be a database file path, not a directory", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
