package fabricator

import (
	"context"
)

type skipKey struct{}

// WithoutTracking marks the context so mutations made with it are not
// recorded, even while a session is running.
func WithoutTracking(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipKey{}, true)
}

// extractSkip extracts the skip flag from context.
func extractSkip(ctx context.Context) bool {
	if v, ok := ctx.Value(skipKey{}).(bool); ok {
		return v
	}
	return false
}
