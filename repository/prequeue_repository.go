package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"spotiqueue/db"
	"spotiqueue/model"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicatePending is returned when a pending entry already exists for
// the same track. The unique key enforces this at the database, so
// concurrent submits cannot both land.
var ErrDuplicatePending = errors.New("a pending request for this track already exists")

// PrequeueRepository defines the interface for the approval queue.
type PrequeueRepository interface {
	Insert(e *model.PrequeueEntry) error
	GetByID(id string) (*model.PrequeueEntry, error)
	ListPending() ([]*model.PrequeueEntry, error)
	// MarkApproved transitions pending→approved. Returns false when the
	// entry was not pending (already resolved or missing).
	MarkApproved(id, approvedBy string) (bool, error)
	MarkDeclined(id, declinedBy string) (bool, error)
	DeleteAll() error
}

// mysqlPrequeueRepository implements PrequeueRepository for MySQL.
type mysqlPrequeueRepository struct {
	DB *sql.DB
}

// NewMySQLPrequeueRepository creates a new instance backed by the shared connection.
func NewMySQLPrequeueRepository() PrequeueRepository {
	return &mysqlPrequeueRepository{DB: db.DB}
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func (r *mysqlPrequeueRepository) Insert(e *model.PrequeueEntry) error {
	query := `INSERT INTO prequeue (id, fingerprint_id, track_id, track_name, artist_name, album_art, status, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.DB.Exec(query, e.ID, e.FingerprintID, e.TrackID, e.TrackName, e.ArtistName, e.AlbumArt, e.Status, e.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicatePending
		}
		return fmt.Errorf("failed to insert prequeue entry %s: %w", e.ID, err)
	}
	return nil
}

func (r *mysqlPrequeueRepository) GetByID(id string) (*model.PrequeueEntry, error) {
	query := `SELECT id, fingerprint_id, track_id, track_name, artist_name, album_art, status, approved_by, created_at
	           FROM prequeue WHERE id = ?`
	e := &model.PrequeueEntry{}
	err := r.DB.QueryRow(query, id).Scan(&e.ID, &e.FingerprintID, &e.TrackID, &e.TrackName,
		&e.ArtistName, &e.AlbumArt, &e.Status, &e.ApprovedBy, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Entry not found
		}
		return nil, fmt.Errorf("failed to scan prequeue entry %s: %w", id, err)
	}
	return e, nil
}

func (r *mysqlPrequeueRepository) ListPending() ([]*model.PrequeueEntry, error) {
	query := `SELECT id, fingerprint_id, track_id, track_name, artist_name, album_art, status, approved_by, created_at
	           FROM prequeue WHERE status = 'pending' ORDER BY created_at ASC`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending prequeue entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.PrequeueEntry, 0)
	for rows.Next() {
		e := &model.PrequeueEntry{}
		err := rows.Scan(&e.ID, &e.FingerprintID, &e.TrackID, &e.TrackName,
			&e.ArtistName, &e.AlbumArt, &e.Status, &e.ApprovedBy, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prequeue entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListPending: %w", err)
	}
	return entries, nil
}

// resolve flips a pending entry to a terminal status. The status guard in
// the WHERE clause makes resolution exactly-once under concurrency.
func (r *mysqlPrequeueRepository) resolve(id, status, by string) (bool, error) {
	query := `UPDATE prequeue SET status = ?, approved_by = ? WHERE id = ? AND status = 'pending'`
	res, err := r.DB.Exec(query, status, by, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve prequeue entry %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for prequeue entry %s: %w", id, err)
	}
	return affected == 1, nil
}

func (r *mysqlPrequeueRepository) MarkApproved(id, approvedBy string) (bool, error) {
	return r.resolve(id, model.PrequeueApproved, approvedBy)
}

func (r *mysqlPrequeueRepository) MarkDeclined(id, declinedBy string) (bool, error) {
	return r.resolve(id, model.PrequeueDeclined, declinedBy)
}

func (r *mysqlPrequeueRepository) DeleteAll() error {
	if _, err := r.DB.Exec(`DELETE FROM prequeue`); err != nil {
		return fmt.Errorf("failed to delete all prequeue entries: %w", err)
	}
	return nil
}
