package usecase

import (
	"errors"

	"agriadvisor/internal/i18n"
)

var (
	ErrNoActiveRecording  = errors.New("no active recording")
	ErrRecordingDiscarded = errors.New("recording was discarded")
	ErrSendInFlight       = errors.New("a message is already being sent")
	ErrValidation         = errors.New("validation failed")
	ErrNoSignupTicket     = errors.New("no pending google signup")
)

// ValidationError is a form problem caught before any request is made. Key
// names the translated message shown inline.
type ValidationError struct {
	Field string
	Key   i18n.Key
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + string(e.Key)
	}
	return "validation failed: " + e.Field + ": " + string(e.Key)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
