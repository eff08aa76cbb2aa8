package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	err := UnauthorizedError("")
	assert.Equal(t, http.StatusUnauthorized, err.Status)
	assert.Equal(t, "authentication required", err.Error())

	assert.True(t, IsAppError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsAppError(errors.New("plain")))
}

func TestJSONError(t *testing.T) {
	t.Run("app error keeps its status and code", func(t *testing.T) {
		w := httptest.NewRecorder()
		JSONError(w, TokenRevokedError())

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var body struct {
			Error AppError `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "token_revoked", body.Error.Code)
	})

	t.Run("unknown errors stay opaque", func(t *testing.T) {
		w := httptest.NewRecorder()
		JSONError(w, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		// Internal details never reach the client.
		assert.NotContains(t, w.Body.String(), "connection refused")
		assert.Contains(t, w.Body.String(), "internal_error")
	})
}

func TestFormatValidationError(t *testing.T) {
	type form struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=8"`
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	err := v.Struct(form{Email: "nope", Password: "short"})
	require.Error(t, err)

	msg := FormatValidationError(err)
	assert.Contains(t, msg, "email must be a valid email address")
	assert.Contains(t, msg, "password must be at least 8 characters")

	assert.Equal(t, "invalid request", FormatValidationError(errors.New("x")))
}
