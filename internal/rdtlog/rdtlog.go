// Package rdtlog tags a context with a per-session correlation ID the way
// the teacher codebase tags every dlog line with a connection's 4-tuple.
// Reliable-transfer sessions have no 4-tuple of their own (the channel is
// handed in already connected), so a UUID fills the same role.
package rdtlog

import (
	"context"

	"github.com/google/uuid"
)

type sessionIDKey struct{}

// WithSession returns a context tagged with a fresh session ID, and the ID
// itself for inclusion in the caller's own log lines.
func WithSession(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, sessionIDKey{}, id), id
}

// SessionID returns the session ID tagged on ctx by WithSession, or ""
// if none was tagged.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
