package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/identity"
	internaljwt "github.com/jobyojnahub-a11y/websevixof/internal/jwt"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

type contextKey struct{}

type TokenParser interface {
	Parse(token string) (internaljwt.Claims, error)
}

// RequireRole admits requests whose bearer token verifies and carries one
// of roles. The resolved identity is stored on the request context.
func RequireRole(parser TokenParser, roles ...model.Role) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(tokenString, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			tokenString = strings.TrimSpace(tokenString[len("Bearer "):])

			claims, err := parser.Parse(tokenString)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer token rejected")
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !hasRole(claims.Role, roles) {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}

			ident := identity.FromClaims(claims)
			next(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, ident)))
		}
	}
}

// IdentityFrom returns the identity stored by RequireRole.
func IdentityFrom(ctx context.Context) (identity.Identity, bool) {
	ident, ok := ctx.Value(contextKey{}).(identity.Identity)
	return ident, ok
}

func hasRole(role model.Role, roles []model.Role) bool {
	for _, allowed := range roles {
		if role == allowed {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"message":"` + message + `"}`))
}
