package shadowwrite

import "context"

type requestIDKey struct{}

// WithRequestID attaches a caller-supplied request identifier to the
// context; the harness copies it onto every FailureRecord produced under
// that context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFrom returns the request identifier attached by WithRequestID,
// or an empty string.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
