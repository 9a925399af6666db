// Package gate defines the admission gate port guarding every entry point.
package gate

import "context"

// Gate admits or rejects a request before any state mutation begins.
type Gate interface {
	// Admit returns nil to admit the request, or an error wrapping
	// domain.ErrRateLimited when the caller identified by key has exceeded
	// its budget. Implementations may suspend briefly but must honor ctx.
	Admit(ctx context.Context, key string) error
}
