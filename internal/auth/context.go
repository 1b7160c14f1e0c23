// ABOUTME: Identity propagation through request contexts
// ABOUTME: Provides WithUser/UserFromContext for handlers downstream of the middleware

package auth

import "context"

// userIDKey is the key type for storing the authenticated user ID in context.
type userIDKey struct{}

// WithUser returns a new context with the authenticated user ID attached.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserFromContext retrieves the authenticated user ID from the context.
// Returns an empty string and false if no identity was attached.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
