package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"spotiqueue/core/admission"
	"spotiqueue/core/auth"
	"spotiqueue/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintIDFromHeaderAndCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", fingerprintID(r))

	r.Header.Set("X-Fingerprint-ID", "abc")
	assert.Equal(t, "abc", fingerprintID(r))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(&http.Cookie{Name: "fingerprint_id", Value: "def"})
	assert.Equal(t, "def", fingerprintID(r2))

	// The header wins over the cookie.
	r2.Header.Set("X-Fingerprint-ID", "abc")
	assert.Equal(t, "abc", fingerprintID(r2))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteAdmissionErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"service disabled", admission.ErrServiceDisabled, http.StatusServiceUnavailable},
		{"unknown device", admission.ErrUnknownDevice, http.StatusForbidden},
		{"blocked device", admission.ErrDeviceBlocked, http.StatusForbidden},
		{"banned track", admission.ErrTrackBanned, http.StatusForbidden},
		{"explicit", admission.ErrExplicitBlocked, http.StatusForbidden},
		{"bad reference", admission.ErrInvalidReference, http.StatusBadRequest},
		{"too long", &admission.TooLongError{DurationSec: 700, LimitSec: 600}, http.StatusForbidden},
		{"duplicate in queue", admission.ErrDuplicateInQueue, http.StatusConflict},
		{"duplicate pending", repository.ErrDuplicatePending, http.StatusConflict},
		{"no active device", admission.ErrNoActiveDevice, http.StatusBadGateway},
		{"not connected", admission.ErrNotConnected, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAdmissionError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestWriteAdmissionErrorCooldownCarriesRemaining(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAdmissionError(rec, &admission.CooldownError{RemainingSec: 42})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, float64(42), body["cooldown_remaining"])
}

func TestAdminAuthMiddleware(t *testing.T) {
	auth.SetSecret("test-secret")
	h := &APIHandler{}

	called := false
	protected := h.AdminAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	protected(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	protected(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	token, err := auth.GenerateToken("admin")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	protected(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
	assert.Equal(t, "admin", adminSubject(r))
}
