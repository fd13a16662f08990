package device

import "context"

// Command sources.
const (
	SourceAPI       = "api"
	SourceDeepClean = "deep_clean"
)

type sourceKey struct{}

// WithSource tags commands sent with ctx with where they came from.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source set by WithSource, or SourceAPI.
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceAPI
}
