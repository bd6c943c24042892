// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/policy"
)

type contextKey string

const (
	ClaimsKey contextKey = "jwt_claims"
	ActorKey  contextKey = "actor"
)

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error)
}

// ActorResolver loads the current role for an authenticated subject.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID string) (*policy.Actor, error)
}

type AccessTokenClaims struct {
	UserID    string
	Role      policy.Role
	JTI       string
	ExpiresAt time.Time
}

// Authenticator verifies the bearer token and stores its claims.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				core.JSONError(w, core.UnauthorizedError("missing authorization token"))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Actor resolves the verified subject into a policy actor. It must run
// after Authenticator.
func Actor(resolver ActorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			actor, err := resolver.ResolveActor(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, core.ErrUnauthorized) {
					core.JSONError(w, core.UnauthorizedError("account no longer exists"))
					return
				}
				core.JSONError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// Chain composes Authenticator and Actor into the single middleware that
// protected routes use.
func Chain(verifier TokenVerifier, resolver ActorResolver) func(http.Handler) http.Handler {
	authn := Authenticator(verifier)
	resolve := Actor(resolver)
	return func(next http.Handler) http.Handler {
		return authn(resolve(next))
	}
}

func RequireRole(min policy.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r.Context())
			if actor == nil {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			if !actor.Role.AtLeast(min) {
				core.JSONError(w, core.ForbiddenError("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(policy.RoleAdmin)(next)
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case core.IsAppError(err):
		core.JSONError(w, err)
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	default:
		core.JSONError(w, core.TokenInvalidError())
	}
}

func WithActor(ctx context.Context, actor *policy.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func GetActor(ctx context.Context) *policy.Actor {
	if actor, ok := ctx.Value(ActorKey).(*policy.Actor); ok {
		return actor
	}
	return nil
}

func GetClaims(ctx context.Context) *AccessTokenClaims {
	if claims, ok := ctx.Value(ClaimsKey).(*AccessTokenClaims); ok {
		return claims
	}
	return nil
}

func GetUserID(ctx context.Context) string {
	if actor := GetActor(ctx); actor != nil {
		return actor.ID
	}
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}
