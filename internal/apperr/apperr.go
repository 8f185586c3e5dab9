// Package apperr defines the error categories used across greenbite.
//
// Error taxonomy
//
//	InputError        – the caller sent something we cannot use (undecodable
//	                    image, missing form field, bad tool arguments).
//	                    HTTP status: 400.
//
//	ErrClassification – the inference backend could not produce a probability
//	                    distribution for an image. Fatal to the request.
//	                    HTTP status: 502.
//
//	Recovered[T]      – a best-effort call (reference dataset load, swap
//	                    suggestions) that fell back to a default value. Never
//	                    surfaced to the caller; the Err field is for logs only.
//
// Everything else is a plain Go error propagated with
// fmt.Errorf("context: %w", err) wrapping.
package apperr

import (
	"errors"
	"fmt"
)

// ErrClassification marks a failure of the classifier backend.
var ErrClassification = errors.New("classification failed")

// InputError represents an error caused by invalid or missing request input.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

// Input creates an InputError with the given message.
func Input(msg string) error { return &InputError{Message: msg} }

// Inputf creates a formatted InputError.
func Inputf(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// IsInput reports whether err is (or wraps) an *InputError.
func IsInput(err error) bool {
	var in *InputError
	return errors.As(err, &in)
}

// Classificationf wraps ErrClassification with context.
func Classificationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrClassification, fmt.Sprintf(format, args...))
}

// Recovered carries the value a best-effort operation settled on, together
// with the error that forced it onto its fallback path (nil when the
// operation succeeded normally).
type Recovered[T any] struct {
	Value T
	Err   error
}

// Degraded reports whether the value is a fallback.
func (r Recovered[T]) Degraded() bool { return r.Err != nil }

// Ok wraps a value obtained on the normal path.
func Ok[T any](v T) Recovered[T] { return Recovered[T]{Value: v} }

// Fallback wraps a fallback value and the reason it was used.
func Fallback[T any](v T, err error) Recovered[T] { return Recovered[T]{Value: v, Err: err} }
