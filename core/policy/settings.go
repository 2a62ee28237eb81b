package policy

import (
	"fmt"
	"strconv"

	"spotiqueue/repository"
)

// Settings is a typed snapshot of the admission-relevant config keys,
// parsed once per request. Handlers never read raw strings.
type Settings struct {
	CooldownDuration     int64 // seconds
	SongsBeforeCooldown  int
	FingerprintEnabled   bool
	QueueingEnabled      bool
	PrequeueEnabled      bool
	RequireUsername      bool
	RequireGithubAuth    bool
	RequireHackClubAuth  bool
	MaxSongDurationSec   int // 0 disables the duration check
	BanExplicit          bool
	VotingEnabled        bool
	URLInputEnabled      bool
	SearchUIEnabled      bool
	SlackPrequeueEnabled bool
	UserPassword         string
}

// Defaults mirror the values seeded on first run. Missing or malformed
// keys fall back here instead of failing the request.
var defaults = Settings{
	CooldownDuration:    300,
	SongsBeforeCooldown: 1,
	FingerprintEnabled:  true,
	QueueingEnabled:     true,
	URLInputEnabled:     true,
	SearchUIEnabled:     true,
}

func parseBool(values map[string]string, key string, fallback bool) bool {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func parseInt(values map[string]string, key string, fallback int) int {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// FromValues builds a snapshot from raw config rows.
func FromValues(values map[string]string) Settings {
	s := defaults
	s.CooldownDuration = int64(parseInt(values, "cooldown_duration", int(defaults.CooldownDuration)))
	s.SongsBeforeCooldown = parseInt(values, "songs_before_cooldown", defaults.SongsBeforeCooldown)
	s.FingerprintEnabled = parseBool(values, "fingerprinting_enabled", defaults.FingerprintEnabled)
	s.QueueingEnabled = parseBool(values, "queueing_enabled", defaults.QueueingEnabled)
	s.PrequeueEnabled = parseBool(values, "prequeue_enabled", false)
	s.RequireUsername = parseBool(values, "require_username", false)
	s.RequireGithubAuth = parseBool(values, "require_github_auth", false)
	s.RequireHackClubAuth = parseBool(values, "require_hackclub_auth", false)
	s.MaxSongDurationSec = parseInt(values, "max_song_duration", 0)
	s.BanExplicit = parseBool(values, "ban_explicit", false)
	s.VotingEnabled = parseBool(values, "voting_enabled", false)
	s.URLInputEnabled = parseBool(values, "url_input_enabled", defaults.URLInputEnabled)
	s.SearchUIEnabled = parseBool(values, "search_ui_enabled", defaults.SearchUIEnabled)
	s.SlackPrequeueEnabled = parseBool(values, "slack_prequeue_enabled", false)
	s.UserPassword = values["user_password"]
	return s
}

// Load reads the config store and returns a typed snapshot.
func Load(repo repository.ConfigRepository) (Settings, error) {
	values, err := repo.All()
	if err != nil {
		return defaults, fmt.Errorf("failed to load settings: %w", err)
	}
	return FromValues(values), nil
}
