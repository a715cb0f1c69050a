package services

import "errors"

// Error taxonomy surfaced by the services. Handlers map these onto
// HTTP status codes; everything else is a 500.
var (
	ErrValidation       = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
)
