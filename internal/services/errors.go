package services

import "errors"

// Shared outcomes handlers translate to HTTP statuses.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("not allowed")
)
