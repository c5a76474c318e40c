package controller

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPAIN22/nubian-storefront/internal/errors"
)

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "buyer", "exp": exp.Unix()})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestSessionController_CredentialLifecycle(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	w := app.do(t, sessionID, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["has_credential"])

	w = app.do(t, sessionID, http.MethodPut, "/api/v1/session/credential", map[string]string{
		"token": "Bearer " + tokenExpiringAt(t, time.Now().Add(time.Hour)),
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = app.do(t, sessionID, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, true, decodeBody(t, w)["has_credential"])

	w = app.do(t, sessionID, http.MethodDelete, "/api/v1/session/credential", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, sessionID, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, false, decodeBody(t, w)["has_credential"])
}

func TestSessionController_SetCredential_Rejects(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{name: "missing token", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: errors.ValidationInvalidInput},
		{name: "bare scheme", body: map[string]string{"token": "Bearer"}, wantStatus: http.StatusBadRequest, wantCode: errors.SessionCredentialInvalid},
		{name: "expired", body: map[string]string{"token": tokenExpiringAt(t, time.Now().Add(-time.Hour))}, wantStatus: http.StatusUnauthorized, wantCode: errors.SessionCredentialExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, sessionID, http.MethodPut, "/api/v1/session/credential", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, w)["error"])
		})
	}
}
