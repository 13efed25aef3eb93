package auth

import "context"

// RequestMetadata is the client information captured for audit entries.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
}

type requestMetadataKey struct{}

// SetRequestMetadata stores client metadata on the context.
func SetRequestMetadata(ctx context.Context, md RequestMetadata) context.Context {
	return context.WithValue(ctx, requestMetadataKey{}, md)
}

// GetRequestMetadata returns client metadata, or the zero value outside an HTTP request.
func GetRequestMetadata(ctx context.Context) RequestMetadata {
	md, _ := ctx.Value(requestMetadataKey{}).(RequestMetadata)
	return md
}
