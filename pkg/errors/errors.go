package apperrors

import "errors"

// Failure taxonomy shared across the gateway. Handlers map these onto
// wire-level error responses; anything else is treated as internal.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Safe reports whether an error message may be returned to the caller
// verbatim. Internal failures are logged with context and masked.
func Safe(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput)
}
