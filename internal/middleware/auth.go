package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/internlink/auth-service/internal/core"
	"github.com/internlink/auth-service/internal/principal"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal_ref"
	RoleKey      contextKey = "principal_role"
	ClaimsKey    contextKey = "jwt_claims"
)

type AccessTokenClaims struct {
	Kind      principal.Kind
	ID        int64
	Email     string
	Name      string
	Role      string
	SessionID string
	ExpiresAt time.Time
}

func (c *AccessTokenClaims) Ref() principal.Ref {
	return principal.Ref{Kind: c.Kind, ID: c.ID}
}

type TokenVerifier interface {
	VerifyAccessToken(
		ctx context.Context,
		token string,
	) (*AccessTokenClaims, error)
}

type BlacklistChecker interface {
	IsAccessTokenBlacklisted(
		ctx context.Context,
		sessionID string,
	) (bool, error)
}

// Authenticator verifies the bearer token and, when a blacklist checker is
// provided, rejects tokens whose session was revoked before expiry.
func Authenticator(
	verifier TokenVerifier,
	blacklist BlacklistChecker,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)

			if token == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("missing authorization token"),
				)
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			if blacklist != nil {
				revoked, blErr := blacklist.IsAccessTokenBlacklisted(
					r.Context(),
					claims.SessionID,
				)
				if blErr != nil {
					// Fail open on blacklist backend errors: the token
					// signature and expiry already checked out.
					slog.Warn("blacklist check failed",
						"session_id", claims.SessionID,
						"error", blErr,
					)
				} else if revoked {
					core.JSONError(w, core.TokenRevokedError())
					return
				}
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, PrincipalKey, claims.Ref())
			ctx = context.WithValue(ctx, RoleKey, claims.Role)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRole(r.Context())

			if role == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("authentication required"),
				)
				return
			}

			if _, ok := roleSet[role]; !ok {
				core.JSONError(
					w,
					core.ForbiddenError("insufficient permissions"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(principal.KindAdmin.Role())(next)
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
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	default:
		core.JSONError(w, core.TokenInvalidError())
	}
}

func GetPrincipalRef(ctx context.Context) (principal.Ref, bool) {
	ref, ok := ctx.Value(PrincipalKey).(principal.Ref)
	return ref, ok && ref.Valid()
}

func GetRole(ctx context.Context) string {
	if role, ok := ctx.Value(RoleKey).(string); ok {
		return role
	}
	return ""
}

func GetClaims(ctx context.Context) *AccessTokenClaims {
	if claims, ok := ctx.Value(ClaimsKey).(*AccessTokenClaims); ok {
		return claims
	}
	return nil
}

func IsAuthenticated(ctx context.Context) bool {
	_, ok := GetPrincipalRef(ctx)
	return ok
}
