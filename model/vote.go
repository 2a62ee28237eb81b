package model

// Vote is one (track, fingerprint) upvote pair. A repeat vote toggles the
// original away instead of duplicating. Votes are never pruned when a
// track leaves the queue; counts are all-time per track id.
type Vote struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	TrackID       string `gorm:"size:64;not null;uniqueIndex:uq_track_fingerprint" json:"track_id"`
	FingerprintID string `gorm:"size:64;not null;uniqueIndex:uq_track_fingerprint" json:"fingerprint_id"`
	CreatedAt     int64  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName keeps the table name aligned with the raw-SQL schema.
func (Vote) TableName() string { return "votes" }
