package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"tle_arena/internal/common"
	"tle_arena/internal/common/security"
	"tle_arena/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	UserIDCtxKey   contextKey = "userID"
	UserRoleCtxKey contextKey = "userRole"
	PlayerIDCtxKey contextKey = "playerID"
)

// Authenticator rejects requests without a verified token and stores the caller's
// ids and role in the request context. It expects jwtauth.Verifier to run first.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			if errors.Is(err, jwtauth.ErrNoTokenFound) {
				common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			} else {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
			}
			return
		}
		if token == nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		userID, err := security.GetUserIDFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
			return
		}
		userRole, err := security.GetUserRoleFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), UserIDCtxKey, userID)
		ctx = context.WithValue(ctx, UserRoleCtxKey, userRole)
		ctx = context.WithValue(ctx, PlayerIDCtxKey, security.GetPlayerIDFromClaims(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthenticator behaves like Authenticator when a token is present and lets
// anonymous requests through untouched.
func OptionalAuthenticator(next http.Handler) http.Handler {
	strict := Authenticator(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := jwtauth.FromContext(r.Context()); errors.Is(err, jwtauth.ErrNoTokenFound) {
			next.ServeHTTP(w, r)
			return
		}
		strict.ServeHTTP(w, r)
	})
}

// RequireRole allows only the listed roles. It must run after Authenticator.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRoleFromContext(r.Context())
			if !ok || !slices.Contains(roles, role) {
				common.RespondWithError(w, http.StatusForbidden, "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(UserRoleCtxKey).(string)
		if !ok || role != model.RoleAdmin {
			common.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PlayerOnly requires a token that carries a player profile.
func PlayerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := GetPlayerIDFromContext(r.Context()); id == "" {
			common.RespondWithError(w, http.StatusForbidden, "Player account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Helper to get user ID from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok
}

// Helper to get user role from context
func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	userRole, ok := ctx.Value(UserRoleCtxKey).(string)
	return userRole, ok
}

func GetPlayerIDFromContext(ctx context.Context) (string, bool) {
	playerID, ok := ctx.Value(PlayerIDCtxKey).(string)
	return playerID, ok
}
