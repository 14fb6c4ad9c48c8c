package shared

import "errors"

// Error kinds shared by the store, the services and the HTTP layer.
// Anything that is not one of these is treated as a store failure.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("already exists")
)
