package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"spotiqueue/logger"
	"spotiqueue/model"
)

// Notifier posts prequeue requests to a Slack channel via an incoming
// webhook. Notifications are best effort: a Slack outage never blocks a
// submission.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a notifier. An empty webhookURL disables it.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.webhookURL != ""
}

type block map[string]interface{}

func textBlock(text string) block {
	return block{
		"type": "section",
		"text": map[string]string{"type": "mrkdwn", "text": text},
	}
}

// formatDuration renders milliseconds as m:ss for the message fields.
func formatDuration(ms int) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func buildMessage(entryID string, track *model.TrackMetadata, requestedBy string) map[string]interface{} {
	if requestedBy == "" {
		requestedBy = "an anonymous guest"
	}

	blocks := []block{
		textBlock(fmt.Sprintf(":musical_note: *New song request*\n*%s* by %s\nrequested by %s",
			track.Name, track.Artists, requestedBy)),
		{
			"type": "section",
			"fields": []map[string]string{
				{"type": "mrkdwn", "text": "*Album*\n" + track.Album},
				{"type": "mrkdwn", "text": "*Duration*\n" + formatDuration(track.DurationMS)},
			},
		},
		{
			"type": "actions",
			"elements": []block{
				{
					"type":      "button",
					"style":     "primary",
					"action_id": "approve_" + entryID,
					"value":     entryID,
					"text":      map[string]string{"type": "plain_text", "text": "Approve"},
				},
				{
					"type":      "button",
					"style":     "danger",
					"action_id": "decline_" + entryID,
					"value":     entryID,
					"text":      map[string]string{"type": "plain_text", "text": "Decline"},
				},
			},
		},
	}

	msg := map[string]interface{}{
		"text":   fmt.Sprintf("New song request: %s by %s", track.Name, track.Artists),
		"blocks": blocks,
	}
	if track.AlbumArt != "" {
		blocks[0]["accessory"] = block{
			"type":      "image",
			"image_url": track.AlbumArt,
			"alt_text":  track.Album,
		}
	}
	return msg
}

// NotifyPrequeue posts the approve/decline prompt for a new entry.
func (n *Notifier) NotifyPrequeue(ctx context.Context, entryID string, track *model.TrackMetadata, requestedBy string) {
	if !n.Enabled() {
		return
	}

	payload, err := json.Marshal(buildMessage(entryID, track, requestedBy))
	if err != nil {
		logger.Error("failed to marshal slack message", logger.ErrorField(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		logger.Error("failed to build slack request", logger.ErrorField(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		logger.Warn("slack notification failed", logger.ErrorField(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("slack webhook rejected message", logger.Int("status", resp.StatusCode))
	}
}
