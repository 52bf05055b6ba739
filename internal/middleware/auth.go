package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"stowage/internal/auth"
	"stowage/internal/httputil"
)

// OwnerHeader carries the caller's owner ID when no JWT verifier is configured.
const OwnerHeader = "X-Owner-ID"

// publicPaths bypass authentication.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// AuthMiddleware validates the bearer token and stores its subject as the
// request's user ID.
func AuthMiddleware(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("authentication failed", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.Subject))
		})
	}
}

// HeaderAuthMiddleware trusts the X-Owner-ID header. Development only.
func HeaderAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
			if owner == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing "+OwnerHeader+" header")
				return
			}
			next.ServeHTTP(w, httputil.WithUserID(r, owner))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
