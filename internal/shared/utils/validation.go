package utils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String length limits
const (
	MaxInstanceNameLength = 128
	MaxVersionLength      = 64
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if value == "" {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.ContainsFunc(value, unicode.IsControl) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateInstanceName checks a name the backend will use as a directory
func ValidateInstanceName(name string) error {
	if err := ValidateString(name, "instance name", 1, MaxInstanceNameLength, true); err != nil {
		return err
	}
	if strings.ContainsAny(name, `/\:*?"<>|`) {
		return errors.New(`instance name must not contain any of / \ : * ? " < > |`)
	}
	if name == "." || name == ".." || strings.HasSuffix(name, ".") {
		return errors.New("instance name must not end with a dot")
	}
	return nil
}

// ValidateVersion checks an optional game version string
func ValidateVersion(version string) error {
	return ValidateString(version, "version", 1, MaxVersionLength, false)
}
