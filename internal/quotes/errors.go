package quotes

import "errors"

// Client-facing relay errors. Messages are safe to return as-is.
var (
	ErrInvalidBody          = errors.New("invalid request body")
	ErrQuoteTypeRequired    = errors.New("quote type is required")
	ErrUnsupportedQuoteType = errors.New("unsupported quote type")
	ErrInvalidEmail         = errors.New("email address is invalid")
	ErrContactRequired      = errors.New("email or phone is required")
	ErrStoreFailed          = errors.New("failed to store submission")
)

// IsClientError reports whether err should be answered with 400.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidBody) ||
		errors.Is(err, ErrQuoteTypeRequired) ||
		errors.Is(err, ErrUnsupportedQuoteType) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrContactRequired)
}
