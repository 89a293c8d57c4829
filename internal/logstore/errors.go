package logstore

import "errors"

var (
	// ErrNotFound is returned when a key has no entry in the content map.
	ErrNotFound = errors.New("logstore: message not found")
	// ErrRetentionInconsistency means a key was unprotected that the store no
	// longer holds. Protection implies retention, so this is a bookkeeping bug.
	ErrRetentionInconsistency = errors.New("logstore: inconsistent retention state")
	// ErrEvictedDuringBump marks a dedup match that disappeared before it could
	// be bumped. Report recovers by saving the message as new.
	ErrEvictedDuringBump = errors.New("logstore: entry evicted during bump")
	// ErrInvalidSearch is returned by Latest for an uncompilable pattern search.
	ErrInvalidSearch = errors.New("logstore: invalid search")
)
