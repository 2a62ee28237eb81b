package slack

import (
	"encoding/json"
	"testing"

	"spotiqueue/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "3:05", formatDuration(185000))
	assert.Equal(t, "0:59", formatDuration(59999))
	assert.Equal(t, "10:00", formatDuration(600000))
	assert.Equal(t, "0:00", formatDuration(0))
}

func TestBuildMessage(t *testing.T) {
	track := &model.TrackMetadata{
		ID:         "4uLU6hMCjMI75M1A2tKUQC",
		Name:       "Never Gonna Give You Up",
		Artists:    "Rick Astley",
		Album:      "Whenever You Need Somebody",
		AlbumArt:   "https://img.example/art.jpg",
		DurationMS: 213573,
	}

	msg := buildMessage("entry-42", track, "dana")
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "Never Gonna Give You Up")
	assert.Contains(t, body, "requested by dana")
	assert.Contains(t, body, `*Album*\nWhenever You Need Somebody`)
	assert.Contains(t, body, `*Duration*\n3:33`)
	assert.Contains(t, body, "approve_entry-42")
	assert.Contains(t, body, "decline_entry-42")
	assert.Contains(t, body, "https://img.example/art.jpg")
}

func TestBuildMessageWithoutArtOrName(t *testing.T) {
	track := &model.TrackMetadata{Name: "Song", Artists: "Artist", DurationMS: 60000}

	msg := buildMessage("entry-1", track, "")
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "an anonymous guest")
	assert.NotContains(t, body, "image_url")
	assert.Contains(t, body, `*Duration*\n1:00`)
}
