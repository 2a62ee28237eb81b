package model

import "database/sql"

// Prequeue entry statuses. Transitions are pending→approved or
// pending→declined only, never reversed.
const (
	PrequeuePending  = "pending"
	PrequeueApproved = "approved"
	PrequeueDeclined = "declined"
)

// PrequeueEntry is a track held for human approval before it reaches the
// playback queue.
type PrequeueEntry struct {
	ID            string         `json:"id"`
	FingerprintID string         `json:"fingerprint_id"`
	TrackID       string         `json:"track_id"`
	TrackName     string         `json:"track_name"`
	ArtistName    string         `json:"artist_name"`
	AlbumArt      sql.NullString `json:"album_art"`
	Status        string         `json:"status"`
	ApprovedBy    sql.NullString `json:"approved_by"`
	CreatedAt     int64          `json:"created_at"`
}
