package qtrc

import "context"

type sessionContextKey struct{}

var sessionContextVal sessionContextKey

// Put injects the session into the context, returning a new context
// containing that session. Any session already in the context is shadowed.
func Put(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextVal, s)
}

// MaybeGet returns the session in the context, if one exists.
func MaybeGet(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextVal).(*Session)
	return s, ok
}

// Tracef appends a trace event to the session in the context, if one exists.
// Otherwise it does nothing, so request code can trace unconditionally.
func Tracef(ctx context.Context, format string, args ...any) {
	if s, ok := MaybeGet(ctx); ok {
		s.Tracef(format, args...)
	}
}
