package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")

	// Submission-time provider failures; the job moves straight to failed.
	ErrProviderRejected = errors.New("provider rejected request")
	ErrUploadRejected   = errors.New("upload rejected")

	// Polling-time failures; terminal for the job, never retried.
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderMalformed   = errors.New("provider returned malformed payload")
	ErrProviderIncomplete  = errors.New("provider reported success without a result")
	ErrTimeout             = errors.New("generation timeout")

	ErrStoreUnavailable = errors.New("store unavailable")
)
