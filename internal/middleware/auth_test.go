package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internlink/auth-service/internal/core"
	"github.com/internlink/auth-service/internal/principal"
)

type stubVerifier struct {
	claims *AccessTokenClaims
	err    error
}

func (s *stubVerifier) VerifyAccessToken(
	_ context.Context,
	_ string,
) (*AccessTokenClaims, error) {
	return s.claims, s.err
}

type stubBlacklist struct {
	revoked bool
	err     error
}

func (s *stubBlacklist) IsAccessTokenBlacklisted(
	_ context.Context,
	_ string,
) (bool, error) {
	return s.revoked, s.err
}

func studentClaims() *AccessTokenClaims {
	return &AccessTokenClaims{
		Kind:      principal.KindStudent,
		ID:        7,
		Email:     "a@x.com",
		Name:      "Ada Lovelace",
		Role:      "student",
		SessionID: "jti-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func sinkHandler(captured *context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = r.Context()
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc", "abc"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, ExtractToken(r))
		})
	}
}

func TestAuthenticator(t *testing.T) {
	var captured context.Context
	handler := Authenticator(&stubVerifier{claims: studentClaims()}, nil)(
		sinkHandler(&captured),
	)

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	ref, ok := GetPrincipalRef(captured)
	require.True(t, ok)
	assert.Equal(t, principal.Ref{Kind: principal.KindStudent, ID: 7}, ref)
	assert.Equal(t, "student", GetRole(captured))

	claims := GetClaims(captured)
	require.NotNil(t, claims)
	assert.Equal(t, "jti-1", claims.SessionID)
	assert.True(t, IsAuthenticated(captured))
}

func TestAuthenticator_MissingToken(t *testing.T) {
	handler := Authenticator(&stubVerifier{}, nil)(sinkHandler(nil))

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticator_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"expired", fmt.Errorf("verify: %w", core.ErrTokenExpired),
			http.StatusUnauthorized},
		{"revoked", core.ErrTokenRevoked, http.StatusUnauthorized},
		{"garbage", errors.New("unexpected signature"),
			http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Authenticator(&stubVerifier{err: tt.err}, nil)(
				sinkHandler(nil),
			)

			r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			r.Header.Set("Authorization", "Bearer whatever")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthenticator_BlacklistedSession(t *testing.T) {
	handler := Authenticator(
		&stubVerifier{claims: studentClaims()},
		&stubBlacklist{revoked: true},
	)(sinkHandler(nil))

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticator_BlacklistFailureFailsOpen(t *testing.T) {
	handler := Authenticator(
		&stubVerifier{claims: studentClaims()},
		&stubBlacklist{err: errors.New("redis down")},
	)(sinkHandler(nil))

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	// Signature and expiry already verified; an unreachable blacklist must
	// not lock every caller out.
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	protected := RequireRole("admin")(sinkHandler(nil))

	t.Run("no role in context", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), RoleKey, "student")
		r := httptest.NewRequest(http.MethodGet, "/admin/stats", nil).
			WithContext(ctx)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("matching role", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), RoleKey, "admin")
		r := httptest.NewRequest(http.MethodGet, "/admin/stats", nil).
			WithContext(ctx)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetPrincipalRef_InvalidRef(t *testing.T) {
	ctx := context.WithValue(
		context.Background(),
		PrincipalKey,
		principal.Ref{},
	)
	_, ok := GetPrincipalRef(ctx)
	assert.False(t, ok)
	assert.False(t, IsAuthenticated(ctx))
}
