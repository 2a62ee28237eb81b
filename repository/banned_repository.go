package repository

import (
	"database/sql"
	"fmt"

	"spotiqueue/db"
	"spotiqueue/model"
)

// BannedRepository defines the interface for the track denylist.
type BannedRepository interface {
	Add(b *model.BannedTrack) error
	Remove(trackID string) error
	IsBanned(trackID string) (bool, error)
	List() ([]*model.BannedTrack, error)
}

// mysqlBannedRepository implements BannedRepository for MySQL.
type mysqlBannedRepository struct {
	DB *sql.DB
}

// NewMySQLBannedRepository creates a new instance backed by the shared connection.
func NewMySQLBannedRepository() BannedRepository {
	return &mysqlBannedRepository{DB: db.DB}
}

func (r *mysqlBannedRepository) Add(b *model.BannedTrack) error {
	query := `INSERT INTO banned_tracks (track_id, artist_id, reason, created_at) VALUES (?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE artist_id = VALUES(artist_id), reason = VALUES(reason)`
	res, err := r.DB.Exec(query, b.TrackID, b.ArtistID, b.Reason, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to ban track %s: %w", b.TrackID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		b.ID = id
	}
	return nil
}

func (r *mysqlBannedRepository) Remove(trackID string) error {
	if _, err := r.DB.Exec(`DELETE FROM banned_tracks WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("failed to unban track %s: %w", trackID, err)
	}
	return nil
}

func (r *mysqlBannedRepository) IsBanned(trackID string) (bool, error) {
	var one int
	err := r.DB.QueryRow(`SELECT 1 FROM banned_tracks WHERE track_id = ?`, trackID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check ban for track %s: %w", trackID, err)
	}
	return true, nil
}

func (r *mysqlBannedRepository) List() ([]*model.BannedTrack, error) {
	rows, err := r.DB.Query(`SELECT id, track_id, artist_id, reason, created_at FROM banned_tracks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query banned tracks: %w", err)
	}
	defer rows.Close()

	banned := make([]*model.BannedTrack, 0)
	for rows.Next() {
		b := &model.BannedTrack{}
		if err := rows.Scan(&b.ID, &b.TrackID, &b.ArtistID, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan banned track: %w", err)
		}
		banned = append(banned, b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in List: %w", err)
	}
	return banned, nil
}
