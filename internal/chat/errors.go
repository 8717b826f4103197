package chat

import "errors"

var (
	// ErrValidation rejects malformed input before anything is persisted
	// or fanned out.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound covers both a missing conversation and a caller outside
	// the participant set. The two causes are deliberately
	// indistinguishable so that non-participants cannot probe for a
	// conversation's existence.
	ErrNotFound = errors.New("conversation not found")
)
