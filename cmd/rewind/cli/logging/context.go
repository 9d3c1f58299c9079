package logging

import (
	"context"
)

// Context keys for logging values.
// Using private types to avoid key collisions.
type contextKey int

const (
	sessionIDKey contextKey = iota
	componentKey
	checkpointIDKey
)

// WithSession adds a session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithComponent adds a component name to the context.
// Component names identify the subsystem generating logs (e.g., "builder", "restore", "retention").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithCheckpoint adds a checkpoint ID to the context.
func WithCheckpoint(ctx context.Context, checkpointID string) context.Context {
	return context.WithValue(ctx, checkpointIDKey, checkpointID)
}

// SessionIDFromContext extracts the session ID from the context.
// Returns empty string if not set.
func SessionIDFromContext(ctx context.Context) string {
	if v := ctx.Value(sessionIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CheckpointIDFromContext extracts the checkpoint ID from the context.
// Returns empty string if not set.
func CheckpointIDFromContext(ctx context.Context) string {
	if v := ctx.Value(checkpointIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
