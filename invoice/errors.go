package invoice

import "errors"

// ErrEmptyTranscript is returned when a transcript carries no text at all.
// It is the only error extraction propagates.
var ErrEmptyTranscript = errors.New("transcript is empty")
