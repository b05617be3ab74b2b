// Package common defines shared constants and sentinel errors used across
// the gymsync client and remote layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors raised before a change is queued.
	ErrValidation     = errors.New("validation failed")
	ErrDuplicatePhone = errors.New("phone number already registered")
	ErrUnknownField   = errors.New("unknown field in patch")

	// Subscriber state errors.
	ErrAlreadyPaused = errors.New("subscription already paused")
	ErrNotPaused     = errors.New("subscription is not paused")

	// Sync-flow errors.
	ErrOffline        = errors.New("remote store unreachable")
	ErrSyncInProgress = errors.New("sync already in progress")

	// Activity log errors.
	ErrNoSnapshot = errors.New("log entry carries no previous state")
)
