package service

import "errors"

// ErrNotFound is returned when a referenced record does not exist or has been
// soft-deleted. Handlers map it to HTTP 404.
var ErrNotFound = errors.New("record not found")

// ErrNoModelConfigured is returned by the structured generator when no chat
// model is configured. Summarization treats it as a soft condition and skips;
// interactive callers surface it as a real error.
var ErrNoModelConfigured = errors.New("no chat model configured")

// ErrInvalidModelOutput is returned when the model response could not be
// decoded into the requested shape after all retries.
var ErrInvalidModelOutput = errors.New("model output failed validation")
