package db

import "errors"

// Domain-level database error sentinels.
var (
	// Quote submission errors
	ErrQuoteNotFound = errors.New("quote submission not found")
)
