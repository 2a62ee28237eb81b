package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Inbound action verbs.
const (
	ActionApprove = "approve"
	ActionDecline = "decline"
)

// ErrBadSignature is returned when a request fails signature verification.
var ErrBadSignature = errors.New("slack signature verification failed")

// Action is a parsed approve/decline button press.
type Action struct {
	Verb    string // approve or decline
	EntryID string
	UserID  string
	User    string
}

// VerifySignature checks Slack's v0 request signature. timestamp and
// signature come from the X-Slack-Request-Timestamp and
// X-Slack-Signature headers; body is the raw request body.
func VerifySignature(signingSecret, timestamp, signature string, body []byte) error {
	if signingSecret == "" {
		return errors.New("slack signing secret not configured")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	// Stale timestamps could be replays.
	if d := time.Since(time.Unix(ts, 0)); d > 5*time.Minute || d < -5*time.Minute {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// ParseActionPayload extracts the button press from an interactive
// payload (the JSON carried in the "payload" form field).
func ParseActionPayload(payload string) (*Action, error) {
	var in struct {
		Type string `json:"type"`
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"user"`
		Actions []struct {
			ActionID string `json:"action_id"`
			Value    string `json:"value"`
		} `json:"actions"`
	}
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return nil, fmt.Errorf("failed to decode slack payload: %w", err)
	}
	if in.Type != "block_actions" || len(in.Actions) == 0 {
		return nil, errors.New("not a block action payload")
	}

	raw := in.Actions[0]
	var verb string
	switch {
	case strings.HasPrefix(raw.ActionID, "approve_"):
		verb = ActionApprove
	case strings.HasPrefix(raw.ActionID, "decline_"):
		verb = ActionDecline
	default:
		return nil, fmt.Errorf("unknown action id %q", raw.ActionID)
	}

	entryID := raw.Value
	if entryID == "" {
		entryID = strings.SplitN(raw.ActionID, "_", 2)[1]
	}

	user := in.User.Username
	if user == "" {
		user = in.User.Name
	}

	return &Action{Verb: verb, EntryID: entryID, UserID: in.User.ID, User: user}, nil
}
