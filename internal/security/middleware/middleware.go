package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/businesshub/internal/domain"
	"github.com/yourorg/businesshub/internal/security/audit"
	"github.com/yourorg/businesshub/internal/security/auth"
	"github.com/yourorg/businesshub/internal/security/ratelimit"
)

type IdentityContextKey struct{}

// publicPath reports whether a path is reachable without a resolved identity.
// Search, registration and login are public; everything else on /api,
// including the rest of /api/auth, requires a caller.
func publicPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics" ||
		path == "/api/business/search" ||
		path == "/api/auth/register" ||
		path == "/api/auth/login"
}

// IdentityMiddleware resolves the bearer token into a domain.Identity and
// stores it on the request context. Downstream code trusts the identity
// completely; a missing or invalid token fails Unauthenticated here.
func IdentityMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			userID, err := domain.ParseID(claims.UserID)
			if err != nil {
				log.Warn("token carried malformed user id", slog.String("user_id", claims.UserID))
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			identity := domain.Identity{ID: userID, Email: claims.Email}
			ctx := context.WithValue(r.Context(), IdentityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			userID := ""
			if identity, ok := GetIdentityFromContext(r.Context()); ok {
				userID = identity.ID.Hex()
			}

			if !limiter.Allow(userID) {
				log.Warn("rate limit exceeded", slog.String("user_id", userID))
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ""
			if identity, ok := GetIdentityFromContext(r.Context()); ok {
				userID = identity.ID.Hex()
			}

			if r.Method == http.MethodPost && r.URL.Path == "/api/business" {
				auditLog.LogAction(r.Context(), userID, "create", "business", "", "initiated", "")
			}
			if r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/approve/") {
				auditLog.LogAction(r.Context(), userID, "approve_join", "business", businessIDFromPath(r.URL.Path), "initiated", "")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// businessIDFromPath extracts the business id segment of a
// /api/business/{id}/... path. Middleware runs before the mux has matched a
// pattern, so PathValue is not populated yet.
func businessIDFromPath(path string) string {
	const prefix = "/api/business/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// GetIdentityFromContext returns the resolved caller identity, if any.
func GetIdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey{}).(domain.Identity)
	return identity, ok
}
