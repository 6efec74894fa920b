package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/security"
	"github.com/aryan0dhankhar/bloodlink/internal/security/audit"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
)

type IdentityContextKey struct{}

// TokenVerifier resolves a bearer token to an identity
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Authenticate rejects the request with 401 unless it carries a valid bearer
// token, and otherwise stores the identity in the request context.
func Authenticate(tv TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeMessage(w, http.StatusUnauthorized, "no token provided")
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			identity, err := tv.Verify(tokenString)
			if err != nil {
				log.Debug("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeMessage(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after Authenticate
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !slices.Contains(roles, identity.Role) {
				writeMessage(w, http.StatusForbidden, "access denied for role "+string(identity.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission checks the role permission table after Authenticate
func RequirePermission(authz *security.AuthorizationService, perm security.Permission, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if err := authz.ValidatePermission(identity.Role, perm); err != nil {
				if auditLog != nil {
					auditLog.LogDenied(r.Context(), string(identity.Role), identity.PrincipalID, string(perm))
				}
				status := http.StatusForbidden
				if !errors.Is(err, domain.ErrAuthorization) {
					status = http.StatusInternalServerError
				}
				writeMessage(w, status, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records every state-changing call made by an authenticated principal
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
				if identity, ok := IdentityFromContext(r.Context()); ok {
					auditLog.LogAction(r.Context(), string(identity.Role), identity.PrincipalID,
						r.Method, "api", r.URL.Path, "initiated", "")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey{}).(auth.Identity)
	return identity, ok
}

// WithIdentity is used by tests and internal callers that bypass the token
func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey{}, identity)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
