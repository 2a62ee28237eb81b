package model

import "database/sql"

// Fingerprint statuses.
const (
	FingerprintActive  = "active"
	FingerprintBlocked = "blocked"
)

// Fingerprint is one anonymous device/browser, identified by a random
// token persisted in a cookie. Timestamps are unix seconds.
type Fingerprint struct {
	ID               string         `json:"id"`
	FirstSeen        int64          `json:"first_seen"`
	LastQueueAttempt sql.NullInt64  `json:"last_queue_attempt"`
	CooldownExpires  sql.NullInt64  `json:"cooldown_expires"`
	Status           string         `json:"status"`
	Username         sql.NullString `json:"username"`
	GithubID         sql.NullString `json:"github_id"`
	GithubUsername   sql.NullString `json:"github_username"`
	GithubAvatar     sql.NullString `json:"github_avatar"`
	HackClubID       sql.NullString `json:"hackclub_id"`
	HackClubUsername sql.NullString `json:"hackclub_username"`
	HackClubAvatar   sql.NullString `json:"hackclub_avatar"`
	CreatedAt        int64          `json:"created_at"`
}

// DisplayName returns the best available name for a device.
func (f *Fingerprint) DisplayName() string {
	switch {
	case f.Username.Valid && f.Username.String != "":
		return f.Username.String
	case f.GithubUsername.Valid && f.GithubUsername.String != "":
		return f.GithubUsername.String
	case f.HackClubUsername.Valid && f.HackClubUsername.String != "":
		return f.HackClubUsername.String
	}
	return ""
}
