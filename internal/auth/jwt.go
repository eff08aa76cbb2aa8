package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/internlink/auth-service/internal/config"
	"github.com/internlink/auth-service/internal/core"
	"github.com/internlink/auth-service/internal/middleware"
	"github.com/internlink/auth-service/internal/principal"
)

// TokenCodec signs and verifies HS256 access tokens and mints the opaque
// refresh secrets. Key material lives behind the single signingKey field;
// future rotation means swapping that key, not touching issue/verify logic.
type TokenCodec struct {
	signingKey jwk.Key
	config     config.JWTConfig
}

func NewTokenCodec(cfg config.JWTConfig) (*TokenCodec, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt signing secret not configured")
	}

	key, err := jwk.Import([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	return &TokenCodec{
		signingKey: key,
		config:     cfg,
	}, nil
}

// AccessTokenData is the result of minting one access token.
type AccessTokenData struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

func (c *TokenCodec) IssueAccessToken(
	p *principal.Principal,
) (*AccessTokenData, error) {
	now := time.Now()
	sessionID := uuid.New().String()
	expiresAt := now.Add(c.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(sessionID).
		Issuer(c.config.Issuer).
		Audience([]string{c.config.Audience}).
		Subject(strconv.FormatInt(p.Ref.ID, 10)).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expiresAt).
		Claim("kind", string(p.Ref.Kind)).
		Claim("email", p.Email).
		Claim("name", p.DisplayName).
		Claim("role", p.Role()).
		Claim("roles", []string{p.Role()}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), c.signingKey))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &AccessTokenData{
		Token:     string(signed),
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyAccessToken validates signature, issuer, audience, and expiry with
// zero clock-skew tolerance: access tokens are short-lived, so skew tolerance
// buys little usability for the validity it gives away. Every failure
// collapses to ErrTokenExpired or ErrTokenInvalid; callers must not surface
// the distinction externally.
func (c *TokenCodec) VerifyAccessToken(
	ctx context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), c.signingKey),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(0),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithAudience(c.config.Audience),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf(
			"verify token: malformed subject: %w",
			core.ErrTokenInvalid,
		)
	}

	var kindStr string
	if err := token.Get("kind", &kindStr); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing kind claim: %w",
			core.ErrTokenInvalid,
		)
	}

	kind, err := principal.ParseKind(kindStr)
	if err != nil {
		return nil, fmt.Errorf(
			"verify token: bad kind claim: %w",
			core.ErrTokenInvalid,
		)
	}

	var email string
	if err := token.Get("email", &email); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing email claim: %w",
			core.ErrTokenInvalid,
		)
	}

	var name string
	if err := token.Get("name", &name); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing name claim: %w",
			core.ErrTokenInvalid,
		)
	}

	var role string
	if err := token.Get("role", &role); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	sessionID, ok := token.JwtID()
	if !ok || sessionID == "" {
		return nil, fmt.Errorf(
			"verify token: missing jti: %w",
			core.ErrTokenInvalid,
		)
	}

	expiresAt, ok := token.Expiration()
	if !ok {
		return nil, fmt.Errorf(
			"verify token: missing expiry: %w",
			core.ErrTokenInvalid,
		)
	}

	return &middleware.AccessTokenClaims{
		Kind:      kind,
		ID:        id,
		Email:     email,
		Name:      name,
		Role:      role,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}

// RefreshTokenData pairs an opaque refresh secret with its storage hash.
// Token is the only plaintext copy that ever exists.
type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

func (c *TokenCodec) NewRefreshToken(familyID string) (*RefreshTokenData, error) {
	secret, err := core.GenerateRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	if familyID == "" {
		familyID = uuid.New().String()
	}

	return &RefreshTokenData{
		Token:     secret,
		Hash:      core.HashToken(secret),
		ExpiresAt: time.Now().Add(c.config.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}
