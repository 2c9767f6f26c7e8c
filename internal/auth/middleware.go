package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/response"
)

// contextKey is an unexported type so no other package can read or shadow
// the user ID stored in a request context.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth rejects requests without a valid bearer token.
//
// It reads "Authorization: Bearer <jwt>", validates it, and stores the user
// ID in the request context. A missing, malformed, expired or forged token
// all produce the same 401 envelope:
//
//	{"success":false,"message":"인증이 필요합니다.","error":"UNAUTHORIZED"}
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth attaches the user ID when a valid token is present and lets
// the request through either way. Used by the village routes, where a
// logged-in caller additionally sees isCollected.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns (id, true) for authenticated requests and
// (0, false) for anonymous ones.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func extractUserID(r *http.Request, tokens *TokenService) (int64, error) {
	token, ok := bearerToken(r)
	if !ok {
		return 0, apperror.New(apperror.CodeUnauthorized)
	}
	return tokens.Validate(token)
}

func writeUnauthorized(w http.ResponseWriter) {
	response.Error(w, apperror.New(apperror.CodeUnauthorized))
}
