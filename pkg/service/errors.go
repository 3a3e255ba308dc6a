package service

import "fmt"

// ValidationError reports malformed or missing input. Requests failing
// validation never reach the store.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing referenced entity.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return e.What + " not found" }

// ConflictError reports an attempt to create a conversation for a pair
// that already has one.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }
