package repository

import (
	"database/sql"
	"fmt"

	"spotiqueue/db"
	"spotiqueue/model"
)

// AttemptRepository defines the interface for the queue attempt log.
type AttemptRepository interface {
	Insert(a *model.QueueAttempt) error
	CountSuccessSince(fingerprintID string, since int64) (int, error)
	RecentActivity(limit int) ([]*model.ActivityEntry, error)
	Stats() (*model.AttemptStats, error)
	TopTracks(limit int) ([]*model.TrackCount, error)
	DeleteAll() error
}

// mysqlAttemptRepository implements AttemptRepository for MySQL.
type mysqlAttemptRepository struct {
	DB *sql.DB
}

// NewMySQLAttemptRepository creates a new instance backed by the shared connection.
func NewMySQLAttemptRepository() AttemptRepository {
	return &mysqlAttemptRepository{DB: db.DB}
}

func (r *mysqlAttemptRepository) Insert(a *model.QueueAttempt) error {
	query := `INSERT INTO queue_attempts (fingerprint_id, track_id, track_name, artist_name, status, error_message, timestamp)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.DB.Exec(query, a.FingerprintID, a.TrackID, a.TrackName, a.ArtistName, a.Status, a.ErrorMessage, a.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert queue attempt for %s: %w", a.FingerprintID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// CountSuccessSince counts successful attempts inside the trailing window.
// This is the quota input; it intentionally ignores non-success rows.
func (r *mysqlAttemptRepository) CountSuccessSince(fingerprintID string, since int64) (int, error) {
	query := `SELECT COUNT(*) FROM queue_attempts
	           WHERE fingerprint_id = ? AND status = 'success' AND timestamp > ?`
	var count int
	if err := r.DB.QueryRow(query, fingerprintID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count successes for %s: %w", fingerprintID, err)
	}
	return count, nil
}

func (r *mysqlAttemptRepository) RecentActivity(limit int) ([]*model.ActivityEntry, error) {
	query := `SELECT a.id, a.fingerprint_id, a.track_id, a.track_name, a.artist_name, a.status, a.error_message, a.timestamp,
	           COALESCE(NULLIF(f.username, ''), COALESCE(f.github_username, COALESCE(f.hackclub_username, '')))
	           FROM queue_attempts a
	           LEFT JOIN fingerprints f ON f.id = a.fingerprint_id
	           ORDER BY a.timestamp DESC, a.id DESC
	           LIMIT ?`
	rows, err := r.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activity: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.ActivityEntry, 0, limit)
	for rows.Next() {
		e := &model.ActivityEntry{}
		err := rows.Scan(&e.ID, &e.FingerprintID, &e.TrackID, &e.TrackName, &e.ArtistName,
			&e.Status, &e.ErrorMessage, &e.Timestamp, &e.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in RecentActivity: %w", err)
	}
	return entries, nil
}

func (r *mysqlAttemptRepository) Stats() (*model.AttemptStats, error) {
	query := `SELECT COUNT(*),
	           COALESCE(SUM(status = 'success'), 0),
	           COALESCE(SUM(status = 'blocked'), 0),
	           COALESCE(SUM(status = 'banned'), 0),
	           COALESCE(SUM(status = 'rate_limited'), 0),
	           COALESCE(SUM(status = 'error'), 0),
	           COUNT(DISTINCT fingerprint_id)
	           FROM queue_attempts`
	s := &model.AttemptStats{}
	err := r.DB.QueryRow(query).Scan(&s.Total, &s.Success, &s.Blocked, &s.Banned, &s.RateLimited, &s.Errors, &s.Devices)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt stats: %w", err)
	}
	return s, nil
}

func (r *mysqlAttemptRepository) TopTracks(limit int) ([]*model.TrackCount, error) {
	query := `SELECT track_id, MAX(track_name), MAX(artist_name), COUNT(*) AS c
	           FROM queue_attempts
	           WHERE status = 'success' AND track_id IS NOT NULL
	           GROUP BY track_id
	           ORDER BY c DESC
	           LIMIT ?`
	rows, err := r.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*model.TrackCount, 0, limit)
	for rows.Next() {
		t := &model.TrackCount{}
		var name, artist sql.NullString
		if err := rows.Scan(&t.TrackID, &name, &artist, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan track count: %w", err)
		}
		t.TrackName = name.String
		t.ArtistName = artist.String
		tracks = append(tracks, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in TopTracks: %w", err)
	}
	return tracks, nil
}

func (r *mysqlAttemptRepository) DeleteAll() error {
	if _, err := r.DB.Exec(`DELETE FROM queue_attempts`); err != nil {
		return fmt.Errorf("failed to delete all queue attempts: %w", err)
	}
	return nil
}
