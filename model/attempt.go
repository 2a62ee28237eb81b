package model

import "database/sql"

// Queue attempt outcomes. Attempts are append-only audit records; the
// success rows double as the sliding-window input for cooldown math.
const (
	AttemptSuccess     = "success"
	AttemptBlocked     = "blocked"
	AttemptBanned      = "banned"
	AttemptRateLimited = "rate_limited"
	AttemptError       = "error"
)

// QueueAttempt records one admission decision.
type QueueAttempt struct {
	ID            int64          `json:"id"`
	FingerprintID string         `json:"fingerprint_id"`
	TrackID       sql.NullString `json:"track_id"`
	TrackName     sql.NullString `json:"track_name"`
	ArtistName    sql.NullString `json:"artist_name"`
	Status        string         `json:"status"`
	ErrorMessage  sql.NullString `json:"error_message"`
	Timestamp     int64          `json:"timestamp"`
}
