package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromValuesDefaults(t *testing.T) {
	s := FromValues(map[string]string{})

	assert.Equal(t, int64(300), s.CooldownDuration)
	assert.Equal(t, 1, s.SongsBeforeCooldown)
	assert.True(t, s.FingerprintEnabled)
	assert.True(t, s.QueueingEnabled)
	assert.False(t, s.PrequeueEnabled)
	assert.Equal(t, 0, s.MaxSongDurationSec)
	assert.False(t, s.BanExplicit)
	assert.False(t, s.VotingEnabled)
}

func TestFromValuesParsesOverrides(t *testing.T) {
	s := FromValues(map[string]string{
		"cooldown_duration":     "600",
		"songs_before_cooldown": "3",
		"queueing_enabled":      "false",
		"prequeue_enabled":      "true",
		"max_song_duration":     "480",
		"ban_explicit":          "true",
		"user_password":         "hunter2",
	})

	assert.Equal(t, int64(600), s.CooldownDuration)
	assert.Equal(t, 3, s.SongsBeforeCooldown)
	assert.False(t, s.QueueingEnabled)
	assert.True(t, s.PrequeueEnabled)
	assert.Equal(t, 480, s.MaxSongDurationSec)
	assert.True(t, s.BanExplicit)
	assert.Equal(t, "hunter2", s.UserPassword)
}

func TestFromValuesMalformedFallsBack(t *testing.T) {
	s := FromValues(map[string]string{
		"cooldown_duration":     "soon",
		"songs_before_cooldown": "-2",
		"queueing_enabled":      "yep",
	})

	assert.Equal(t, int64(300), s.CooldownDuration)
	assert.Equal(t, 1, s.SongsBeforeCooldown)
	assert.True(t, s.QueueingEnabled)
}
