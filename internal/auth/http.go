// ABOUTME: HTTP middleware resolving the authenticated user for API and socket requests
// ABOUTME: Accepts a bearer token, the access_token cookie, or a token query parameter

package auth

import (
	"net/http"
	"strings"
)

// CookieName is the session cookie checked when no Authorization header is
// present. It matches the cookie the web client is issued at login.
const CookieName = "access_token"

// extractToken pulls a token from the request, in priority order:
// Authorization bearer header, access_token cookie, token query parameter.
// The query parameter exists because browser WebSocket clients cannot set
// request headers. Returns the token and an error message (empty on success).
func extractToken(r *http.Request) (string, string) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", "invalid authorization header format"
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return "", "empty token"
		}
		return token, ""
	}

	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, ""
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, ""
	}

	return "", "missing credentials"
}

// Middleware creates an HTTP middleware that resolves the authenticated user
// and attaches it to the request context. Requests without a resolvable
// identity are rejected with 401 before reaching the handler.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractToken(r)
			if errMsg != "" {
				unauthorized(w, errMsg)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
