package botcheck

import "errors"

var (
	// ErrTokenMissing means CAPTCHA verification is enabled but no token was sent.
	ErrTokenMissing = errors.New("captcha token is required")

	// ErrVerificationFailed means the provider rejected the token.
	ErrVerificationFailed = errors.New("captcha verification failed")

	// ErrUnavailable means the provider could not be reached or the breaker is open.
	ErrUnavailable = errors.New("captcha verification unavailable")
)
