package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spotiqueue/config"
	"spotiqueue/core/guestauth"
	"spotiqueue/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memServerFingerprints struct {
	byID map[string]*model.Fingerprint
}

func (m *memServerFingerprints) Create(fp *model.Fingerprint) error {
	m.byID[fp.ID] = fp
	return nil
}

func (m *memServerFingerprints) GetByID(id string) (*model.Fingerprint, error) {
	return m.byID[id], nil
}

func (m *memServerFingerprints) SetUsernameIfEmpty(id, username string) error {
	if fp, ok := m.byID[id]; ok && fp.DisplayName() == "" {
		fp.Username = sql.NullString{String: username, Valid: true}
	}
	return nil
}

func (m *memServerFingerprints) BindGithubIdentity(id, githubID, githubUsername, githubAvatar string) error {
	return nil
}

func (m *memServerFingerprints) BindHackClubIdentity(id, hackclubID, hackclubUsername, hackclubAvatar string) error {
	return nil
}

func (m *memServerFingerprints) SetStatus(id, status string) error             { return nil }
func (m *memServerFingerprints) SetCooldown(id string, expires int64) error    { return nil }
func (m *memServerFingerprints) ClearCooldown(id string) error                 { return nil }
func (m *memServerFingerprints) ClearAllCooldowns() error                      { return nil }
func (m *memServerFingerprints) UpdateLastQueueAttempt(id string, ts int64) error { return nil }
func (m *memServerFingerprints) ListDevices() ([]*model.DeviceSummary, error)  { return nil, nil }
func (m *memServerFingerprints) DeleteAll() error                              { return nil }

type memConfig struct {
	values map[string]string
}

func (m *memConfig) Get(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memConfig) Set(key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memConfig) All() (map[string]string, error) {
	return m.values, nil
}

type generateResponse struct {
	FingerprintID string           `json:"fingerprint_id"`
	Username      string           `json:"username"`
	Gate          guestauth.Status `json:"gate"`
}

func newFingerprintFixture(values map[string]string) (*APIHandler, *memServerFingerprints) {
	fps := &memServerFingerprints{byID: map[string]*model.Fingerprint{}}
	h := &APIHandler{
		cfg:          &config.Config{},
		fingerprints: fps,
		configRepo:   &memConfig{values: values},
	}
	return h, fps
}

func TestGenerateFingerprintReturnsGateFlags(t *testing.T) {
	h, fps := newFingerprintFixture(map[string]string{"require_username": "true"})

	r := httptest.NewRequest(http.MethodPost, "/api/fingerprint/generate", nil)
	w := httptest.NewRecorder()
	h.GenerateFingerprintHandler(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp generateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Len(t, resp.FingerprintID, 64)
	assert.Empty(t, resp.Username)
	assert.True(t, resp.Gate.UsernameRequired)
	assert.False(t, resp.Gate.HasUsername)
	assert.False(t, resp.Gate.GithubRequired)
	assert.False(t, resp.Gate.GithubConfigured)

	_, ok := fps.byID[resp.FingerprintID]
	assert.True(t, ok)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "fingerprint_id", cookies[0].Name)
	assert.Equal(t, resp.FingerprintID, cookies[0].Value)
}

func TestGenerateFingerprintKeepsKnownID(t *testing.T) {
	h, fps := newFingerprintFixture(map[string]string{"require_username": "true"})
	fps.byID["known-id"] = &model.Fingerprint{ID: "known-id", Status: model.FingerprintActive}

	body := strings.NewReader(`{"username":"dana"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/fingerprint/generate", body)
	r.Header.Set("X-Fingerprint-ID", "known-id")
	w := httptest.NewRecorder()
	h.GenerateFingerprintHandler(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp generateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "known-id", resp.FingerprintID)
	assert.Equal(t, "dana", resp.Username)
	assert.True(t, resp.Gate.UsernameRequired)
	assert.True(t, resp.Gate.HasUsername)
}

func TestGenerateFingerprintWithUsername(t *testing.T) {
	h, _ := newFingerprintFixture(map[string]string{"require_username": "true"})

	body := strings.NewReader(`{"username":"sam"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/fingerprint/generate", body)
	w := httptest.NewRecorder()
	h.GenerateFingerprintHandler(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp generateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "sam", resp.Username)
	assert.True(t, resp.Gate.HasUsername)
}
