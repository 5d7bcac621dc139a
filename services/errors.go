package services

import "errors"

var (
	// ErrChallengeNotFound covers both unknown catalog ids and challenges the
	// user never joined.
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeNotReady = errors.New("challenge target not reached")
	ErrIdempotencyKey    = errors.New("idempotency key does not match log id")
)
