package models

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to classify any error returned by the store,
// the sharing workflow or the board view.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalid          = errors.New("invalid input")
	ErrTransient        = errors.New("temporarily unavailable")
)

// GenericFailureMessage is shown for any failure that is not the caller's fault.
const GenericFailureMessage = "Something went wrong. Please try again."

// Error is a classified failure with a message safe to show to end users.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFoundf builds an ErrNotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// PermissionDeniedf builds an ErrPermissionDenied error.
func PermissionDeniedf(format string, args ...any) error {
	return &Error{Kind: ErrPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// Invalidf builds an ErrInvalid error.
func Invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalid, Message: fmt.Sprintf(format, args...)}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransient, e.err)
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.err}
}

// Classify returns err unchanged when it already belongs to the taxonomy and
// wraps it as ErrTransient otherwise. Nil stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrInvalid),
		errors.Is(err, ErrTransient):
		return err
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is a backing-store or network failure
// rather than a not-found, permission or validation problem.
func IsTransient(err error) bool {
	return errors.Is(Classify(err), ErrTransient)
}

// PublicMessage returns the text to show an end user for err.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && !errors.Is(err, ErrTransient) {
		return e.Message
	}
	return GenericFailureMessage
}
