package domain

import "errors"

// Sentinel errors for the link registry and resolver paths. Validation and
// conflict errors propagate to the caller unchanged; store errors wrap the
// underlying cause with ErrStore.
var (
	ErrInvalidURL        = errors.New("invalid url")
	ErrInvalidCode       = errors.New("invalid short code")
	ErrReservedCode      = errors.New("short code is reserved")
	ErrCodeExists        = errors.New("short code already exists")
	ErrExhaustedAttempts = errors.New("exhausted short code generation attempts")
	ErrLinkNotFound      = errors.New("link not found")
	ErrStore             = errors.New("store error")
)
