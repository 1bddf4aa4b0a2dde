package errs

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")

	// ErrAlreadyExists signals that an invoice for the order id is already
	// persisted. Callers treat it as an idempotency outcome, not a failure.
	ErrAlreadyExists = errors.New("record already exists")

	// Non-retryable payload errors. Events failing with these are dead-lettered.
	ErrMalformedEvent      = errors.New("malformed event")
	ErrInvalidOrderPayload = errors.New("invalid order payload")
)
