// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package validation wraps go-playground/validator v10 behind a thread-safe
// singleton. It validates API request structs and provider connection
// configs before any network call is made.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single field validation failure.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// RequestError aggregates the validation failures of one struct.
type RequestError struct {
	fieldErrors []FieldError
}

// Fields returns the individual field failures.
func (e *RequestError) Fields() []FieldError { return e.fieldErrors }

func (e *RequestError) Error() string {
	if len(e.fieldErrors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.fieldErrors))
	for i, fe := range e.fieldErrors {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// instance returns the singleton validator, registering custom validators
// on first use.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// rfc3339: string field must parse as an RFC3339 timestamp.
		_ = validate.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(time.RFC3339, fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// ValidateStruct validates s against its `validate` tags. Returns a
// *RequestError describing every failing field, or nil.
func ValidateStruct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: caller passed a non-struct.
		return fmt.Errorf("validation: %w", err)
	}

	re := &RequestError{}
	for _, fe := range verrs {
		re.fieldErrors = append(re.fieldErrors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: messageFor(fe),
		})
	}
	return re
}

// messageFor builds a human-readable message for one field failure.
func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "rfc3339":
		return fmt.Sprintf("%s must be an RFC3339 timestamp", fe.Field())
	default:
		return fmt.Sprintf("%s failed validation (%s)", fe.Field(), fe.Tag())
	}
}
