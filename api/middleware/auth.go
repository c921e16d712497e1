package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"tourist-overwatch/pkg/engine/session"
	"tourist-overwatch/pkg/shared"
)

// SessionLookup resolves a bearer token to its running session.
type SessionLookup interface {
	Session(token string) (*session.Session, error)
}

type contextKey struct{}

type authInfo struct {
	token   string
	session *session.Session
}

// BearerAuth requires a token issued by a verified login.
func BearerAuth(sessions SessionLookup) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				sendUnauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				sendUnauthorized(w, "Invalid authorization format")
				return
			}

			sess, err := sessions.Session(parts[1])
			if err != nil {
				sendUnauthorized(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, authInfo{token: parts[1], session: sess})
			next(w, r.WithContext(ctx))
		}
	}
}

// SessionFromContext returns the session attached by BearerAuth.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	info, ok := ctx.Value(contextKey{}).(authInfo)
	return info.session, ok
}

func TokenFromContext(ctx context.Context) (string, bool) {
	info, ok := ctx.Value(contextKey{}).(authInfo)
	return info.token, ok
}

func sendUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	response := shared.Response{
		Success: false,
		Error: &shared.Error{
			Code:    "UNAUTHORIZED",
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// CORS middleware for handling cross-origin requests
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
