// Package apperror defines the domain error taxonomy shared by the store, the
// sign-up flow, the readout job and the HTTP handlers.
//
// Callers test for a category with errors.Is against one of the sentinels and
// read the human-readable text from the *AppError that wraps it.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrIdentityClaimed = errors.New("identity already claimed")
	ErrChannelNotFound = errors.New("channel not found")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// IdentityClaimed reports that the user registered under email is already
// bound to a chat identity (or the chat identity is bound elsewhere).
// The sign-up flow turns this into a "try another email" prompt.
func IdentityClaimed(email string) *AppError {
	return &AppError{
		Err:     ErrIdentityClaimed,
		Message: fmt.Sprintf("%s is already linked to a chat account", email),
		Field:   "email",
	}
}

// ChannelNotFound reports that the configured readout channel could not be resolved.
func ChannelNotFound(id string) *AppError {
	return &AppError{
		Err:     ErrChannelNotFound,
		Message: fmt.Sprintf("channel %s not found", id),
	}
}
