// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a turn is already in flight for the conversation.
var ErrConflict = errors.New("conflict: a turn is already in flight")

// ErrRateLimited indicates the admission gate rejected the request.
var ErrRateLimited = errors.New("rate limited")

// ErrSchemaViolation indicates a tool call carried malformed arguments.
var ErrSchemaViolation = errors.New("tool arguments violate schema")

// ErrProviderFailure indicates the model provider call or stream failed.
var ErrProviderFailure = errors.New("model provider failure")

// ErrValidationTimeout is reserved for challenge validation timeouts.
// No code path currently returns it.
var ErrValidationTimeout = errors.New("validation timed out")
