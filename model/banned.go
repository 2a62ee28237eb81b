package model

import "database/sql"

// BannedTrack is an admin-maintained denylist entry. Presence alone is
// sufficient to reject the track.
type BannedTrack struct {
	ID        int64          `json:"id"`
	TrackID   string         `json:"track_id"`
	ArtistID  sql.NullString `json:"artist_id"`
	Reason    sql.NullString `json:"reason"`
	CreatedAt int64          `json:"created_at"`
}
