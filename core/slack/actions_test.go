package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	body := []byte("payload=%7B%7D")
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	assert.NoError(t, VerifySignature(secret, ts, sign(secret, ts, body), body))
	assert.ErrorIs(t, VerifySignature(secret, ts, "v0=deadbeef", body), ErrBadSignature)
	assert.ErrorIs(t, VerifySignature(secret, "not-a-number", sign(secret, ts, body), body), ErrBadSignature)

	stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	assert.ErrorIs(t, VerifySignature(secret, stale, sign(secret, stale, body), body), ErrBadSignature)
}

func TestParseActionPayload(t *testing.T) {
	payload := `{
		"type": "block_actions",
		"user": {"id": "U123", "username": "booth.dj"},
		"actions": [{"action_id": "approve_abc-123", "value": "abc-123"}]
	}`

	action, err := ParseActionPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, action.Verb)
	assert.Equal(t, "abc-123", action.EntryID)
	assert.Equal(t, "booth.dj", action.User)
}

func TestParseActionPayloadDecline(t *testing.T) {
	payload := `{
		"type": "block_actions",
		"user": {"id": "U123", "name": "dj"},
		"actions": [{"action_id": "decline_xyz", "value": ""}]
	}`

	action, err := ParseActionPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, ActionDecline, action.Verb)
	assert.Equal(t, "xyz", action.EntryID)
	assert.Equal(t, "dj", action.User)
}

func TestParseActionPayloadRejectsUnknown(t *testing.T) {
	_, err := ParseActionPayload(`{"type": "block_actions", "actions": [{"action_id": "snooze_1"}]}`)
	assert.Error(t, err)

	_, err = ParseActionPayload(`{"type": "view_submission"}`)
	assert.Error(t, err)

	_, err = ParseActionPayload(`not json`)
	assert.Error(t, err)
}
