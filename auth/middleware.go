package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

var callerKey contextKey

// CallerFrom extracts the authenticated caller from a request context.
// The second return is false for anonymous requests.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok && !c.Anonymous()
}

// WithCaller attaches a caller to a context. Exposed for tests.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// Middleware resolves the Authorization header into a Caller and stores it
// in the request context. Requests without a token proceed anonymously;
// requests with an invalid token are rejected outright so a client never
// silently downgrades to anonymous.
func Middleware(verifier *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == header {
				http.Error(w, "malformed authorization header", http.StatusUnauthorized)
				return
			}
			caller, err := verifier.ParseAndValidate(raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}
