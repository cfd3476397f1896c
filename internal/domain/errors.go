package domain

import "errors"

var (
	// ErrPermissionDenied is returned when the microphone cannot be opened
	// because the user or the OS refused access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrUnauthorized marks a 401 from the backend. Seeing it anywhere means
	// the stored session is gone.
	ErrUnauthorized = errors.New("unauthorized")
)
