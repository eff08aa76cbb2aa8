package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internlink/auth-service/internal/config"
	"github.com/internlink/auth-service/internal/core"
	"github.com/internlink/auth-service/internal/principal"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:             testSecret,
		AccessTokenExpire:  time.Hour,
		RefreshTokenExpire: 7 * 24 * time.Hour,
		Issuer:             "internlink-auth",
		Audience:           "internlink-api",
	}
}

func testPrincipal() *principal.Principal {
	return &principal.Principal{
		Ref:         principal.Ref{Kind: principal.KindStudent, ID: 42},
		Email:       "a@x.com",
		DisplayName: "Ada Lovelace",
	}
}

func TestNewTokenCodec_MissingSecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Secret = ""

	_, err := NewTokenCodec(cfg)
	assert.Error(t, err)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	codec, err := NewTokenCodec(testJWTConfig())
	require.NoError(t, err)

	data, err := codec.IssueAccessToken(testPrincipal())
	require.NoError(t, err)
	require.NotEmpty(t, data.Token)
	require.NotEmpty(t, data.SessionID)

	claims, err := codec.VerifyAccessToken(context.Background(), data.Token)
	require.NoError(t, err)

	assert.Equal(t, principal.KindStudent, claims.Kind)
	assert.EqualValues(t, 42, claims.ID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "Ada Lovelace", claims.Name)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, data.SessionID, claims.SessionID)
	assert.WithinDuration(t, data.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestAccessToken_UniqueSessionIDs(t *testing.T) {
	codec, err := NewTokenCodec(testJWTConfig())
	require.NoError(t, err)

	d1, err := codec.IssueAccessToken(testPrincipal())
	require.NoError(t, err)
	d2, err := codec.IssueAccessToken(testPrincipal())
	require.NoError(t, err)

	assert.NotEqual(t, d1.SessionID, d2.SessionID)
	assert.NotEqual(t, d1.Token, d2.Token)
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessTokenExpire = -time.Minute

	issuer, err := NewTokenCodec(cfg)
	require.NoError(t, err)

	data, err := issuer.IssueAccessToken(testPrincipal())
	require.NoError(t, err)

	verifier, err := NewTokenCodec(testJWTConfig())
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(context.Background(), data.Token)
	assert.True(t, errors.Is(err, core.ErrTokenExpired), "got %v", err)
}

func TestVerifyAccessToken_Tampered(t *testing.T) {
	codec, err := NewTokenCodec(testJWTConfig())
	require.NoError(t, err)

	data, err := codec.IssueAccessToken(testPrincipal())
	require.NoError(t, err)

	tampered := data.Token[:len(data.Token)-4] + "AAAA"

	_, err = codec.VerifyAccessToken(context.Background(), tampered)
	assert.True(t, errors.Is(err, core.ErrTokenInvalid), "got %v", err)
}

func TestVerifyAccessToken_WrongKey(t *testing.T) {
	codec, err := NewTokenCodec(testJWTConfig())
	require.NoError(t, err)

	data, err := codec.IssueAccessToken(testPrincipal())
	require.NoError(t, err)

	otherCfg := testJWTConfig()
	otherCfg.Secret = "ffffffffffffffffffffffffffffffff"
	other, err := NewTokenCodec(otherCfg)
	require.NoError(t, err)

	_, err = other.VerifyAccessToken(context.Background(), data.Token)
	assert.True(t, errors.Is(err, core.ErrTokenInvalid), "got %v", err)
}

func TestVerifyAccessToken_WrongIssuerOrAudience(t *testing.T) {
	codec, err := NewTokenCodec(testJWTConfig())
	require.NoError(t, err)

	data, err := codec.IssueAccessToken(testPrincipal())
	require.NoError(t, err)

	badIssuer := testJWTConfig()
	badIssuer.Issuer = "someone-else"
	verifier, err := NewTokenCodec(badIssuer)
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(context.Background(), data.Token)
	assert.Error(t, err)

	badAudience := testJWTConfig()
	badAudience.Audience = "other-api"
	verifier, err = NewTokenCodec(badAudience)
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(context.Background(), data.Token)
	assert.Error(t, err)
}

func TestNewRefreshToken(t *testing.T) {
	codec, err := NewTokenCodec(testJWTConfig())
	require.NoError(t, err)

	data, err := codec.NewRefreshToken("")
	require.NoError(t, err)

	assert.NotEmpty(t, data.Token)
	assert.NotEmpty(t, data.FamilyID)
	assert.Equal(t, core.HashToken(data.Token), data.Hash)
	assert.WithinDuration(
		t,
		time.Now().Add(7*24*time.Hour),
		data.ExpiresAt,
		time.Minute,
	)

	// A supplied family id is kept for rotation lineage.
	rotated, err := codec.NewRefreshToken(data.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, data.FamilyID, rotated.FamilyID)
	assert.NotEqual(t, data.Token, rotated.Token)
}
