// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"
)

// Error classes. Handlers map these to HTTP status codes.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Service errors.
var (
	ErrListNotFound    = classified("List not found", ErrNotFound)
	ErrExpenseNotFound = classified("Expense not found", ErrNotFound)
	ErrUserNotFound    = classified("User not found", ErrNotFound)
	ErrListNameTaken   = classified("List name already exists", ErrConflict)
)

// classError is a sentinel that belongs to one error class.
type classError struct {
	msg   string
	class error
}

func classified(msg string, class error) error {
	return &classError{msg: msg, class: class}
}

func (e *classError) Error() string { return e.msg }
func (e *classError) Unwrap() error { return e.class }

// ValidationError describes one invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
