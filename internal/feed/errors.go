package feed

import "errors"

var (
	ErrBadURL         = errors.New("invalid feed url")
	ErrHostNotAllowed = errors.New("host not allowed")
	ErrUpstream       = errors.New("upstream feed request failed")
	ErrTooLarge       = errors.New("upstream feed too large")
	ErrUnavailable    = errors.New("feed temporarily unavailable")
)
