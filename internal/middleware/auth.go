package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"curehub-backend/internal/auth"
	"curehub-backend/internal/transport"
)

// Principal is the acting identity attached to the request context after the
// bearer token has been verified and resolved. The password hash never
// reaches this struct.
type Principal struct {
	ID    string
	Role  string
	Name  string
	Email string
}

var ErrPrincipalNotFound = errors.New("principal not found")

// Resolver looks up a principal by its verified id. Implementations return
// ErrPrincipalNotFound when the id no longer maps to an account.
type Resolver func(ctx context.Context, id string) (Principal, error)

type principalKey struct{}

// Auth gates protected routes: no token, a bad or expired token, or an
// unresolvable principal all short-circuit with 401 before business logic.
func Auth(manager *auth.Manager, resolve Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
				return
			}

			claims, err := manager.Parse(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					transport.WriteError(w, http.StatusUnauthorized, "token expired", nil)
					return
				}
				transport.WriteError(w, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			principal, err := resolve(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, ErrPrincipalNotFound) {
					transport.WriteError(w, http.StatusUnauthorized, "principal not found", nil)
					return
				}
				transport.WriteError(w, http.StatusInternalServerError, "identity lookup failed", nil)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated principals of the wrong role with 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				transport.WriteError(w, http.StatusUnauthorized, "missing token", nil)
				return
			}
			if principal.Role != role {
				transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	v, ok := ctx.Value(principalKey{}).(Principal)
	return v, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
