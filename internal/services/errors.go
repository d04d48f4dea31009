package services

import "errors"

// UserError carries a message that is safe to show to the person who made
// the request.
type UserError struct {
	Message string
	Err     error
}

func (e UserError) Error() string {
	return e.Message
}

func (e UserError) Unwrap() error {
	return e.Err
}

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrStatusConflict      = errors.New("order status conflict")
	ErrDuplicateSubmission = errors.New("order submission already in progress")
	ErrServiceUnavailable  = errors.New("order service unavailable")
)
