package logging

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey carries the per-request identifier assigned by the
	// request ID middleware.
	RequestIDKey contextKey = "request_id"
	// ModelKey carries the model name the client asked for.
	ModelKey contextKey = "model"
	// LeaseIDKey carries the credential lease identifier for the
	// in-flight exchange.
	LeaseIDKey contextKey = "lease_id"
	// ConversationIDKey carries the upstream conversation identifier
	// once the agent backend has assigned one.
	ConversationIDKey contextKey = "conversation_id"
)

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID returns the request ID from the context, or "".
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// WithModel returns a context carrying the requested model name.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

// GetModel returns the model name from the context, or "".
func GetModel(ctx context.Context) string {
	return stringValue(ctx, ModelKey)
}

// WithLeaseID returns a context carrying the credential lease ID.
func WithLeaseID(ctx context.Context, leaseID string) context.Context {
	return context.WithValue(ctx, LeaseIDKey, leaseID)
}

// GetLeaseID returns the lease ID from the context, or "".
func GetLeaseID(ctx context.Context) string {
	return stringValue(ctx, LeaseIDKey)
}

// WithConversationID returns a context carrying the upstream
// conversation ID.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, ConversationIDKey, conversationID)
}

// GetConversationID returns the conversation ID from the context, or "".
func GetConversationID(ctx context.Context) string {
	return stringValue(ctx, ConversationIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields collects the known keys from the context as
// slog key/value pairs, skipping absent ones.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range []contextKey{RequestIDKey, ModelKey, LeaseIDKey, ConversationIDKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
