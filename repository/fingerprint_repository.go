package repository

import (
	"database/sql"
	"fmt"

	"spotiqueue/db"
	"spotiqueue/model"
)

// FingerprintRepository defines the interface for device identity records.
type FingerprintRepository interface {
	Create(fp *model.Fingerprint) error
	GetByID(id string) (*model.Fingerprint, error)
	SetUsernameIfEmpty(id, username string) error
	BindGithubIdentity(id, githubID, githubUsername, githubAvatar string) error
	BindHackClubIdentity(id, hackclubID, hackclubUsername, hackclubAvatar string) error
	SetStatus(id, status string) error
	SetCooldown(id string, expires int64) error
	ClearCooldown(id string) error
	ClearAllCooldowns() error
	UpdateLastQueueAttempt(id string, ts int64) error
	ListDevices() ([]*model.DeviceSummary, error)
	DeleteAll() error
}

const fingerprintColumns = `id, first_seen, last_queue_attempt, cooldown_expires, status, username,
	github_id, github_username, github_avatar, hackclub_id, hackclub_username, hackclub_avatar, created_at`

// mysqlFingerprintRepository implements FingerprintRepository for MySQL.
type mysqlFingerprintRepository struct {
	DB *sql.DB
}

// NewMySQLFingerprintRepository creates a new instance backed by the shared connection.
func NewMySQLFingerprintRepository() FingerprintRepository {
	return &mysqlFingerprintRepository{DB: db.DB}
}

func scanFingerprint(scanner interface{ Scan(...interface{}) error }) (*model.Fingerprint, error) {
	fp := &model.Fingerprint{}
	err := scanner.Scan(&fp.ID, &fp.FirstSeen, &fp.LastQueueAttempt, &fp.CooldownExpires, &fp.Status,
		&fp.Username, &fp.GithubID, &fp.GithubUsername, &fp.GithubAvatar,
		&fp.HackClubID, &fp.HackClubUsername, &fp.HackClubAvatar, &fp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return fp, nil
}

func (r *mysqlFingerprintRepository) Create(fp *model.Fingerprint) error {
	query := `INSERT INTO fingerprints (` + fingerprintColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.DB.Exec(query, fp.ID, fp.FirstSeen, fp.LastQueueAttempt, fp.CooldownExpires, fp.Status,
		fp.Username, fp.GithubID, fp.GithubUsername, fp.GithubAvatar,
		fp.HackClubID, fp.HackClubUsername, fp.HackClubAvatar, fp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create fingerprint %s: %w", fp.ID, err)
	}
	return nil
}

func (r *mysqlFingerprintRepository) GetByID(id string) (*model.Fingerprint, error) {
	query := `SELECT ` + fingerprintColumns + ` FROM fingerprints WHERE id = ?`
	fp, err := scanFingerprint(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Fingerprint not found
		}
		return nil, fmt.Errorf("failed to scan fingerprint %s: %w", id, err)
	}
	return fp, nil
}

// SetUsernameIfEmpty applies a username only when none is set yet;
// first write wins, later anonymous updates never overwrite.
func (r *mysqlFingerprintRepository) SetUsernameIfEmpty(id, username string) error {
	query := `UPDATE fingerprints SET username = ? WHERE id = ? AND (username IS NULL OR username = '')`
	if _, err := r.DB.Exec(query, username, id); err != nil {
		return fmt.Errorf("failed to set username for fingerprint %s: %w", id, err)
	}
	return nil
}

func (r *mysqlFingerprintRepository) BindGithubIdentity(id, githubID, githubUsername, githubAvatar string) error {
	query := `UPDATE fingerprints SET github_id = ?, github_username = ?, github_avatar = ?,
	           username = COALESCE(NULLIF(username, ''), ?) WHERE id = ?`
	if _, err := r.DB.Exec(query, githubID, githubUsername, githubAvatar, githubUsername, id); err != nil {
		return fmt.Errorf("failed to bind github identity for fingerprint %s: %w", id, err)
	}
	return nil
}

func (r *mysqlFingerprintRepository) BindHackClubIdentity(id, hackclubID, hackclubUsername, hackclubAvatar string) error {
	query := `UPDATE fingerprints SET hackclub_id = ?, hackclub_username = ?, hackclub_avatar = ?,
	           username = COALESCE(NULLIF(username, ''), ?) WHERE id = ?`
	if _, err := r.DB.Exec(query, hackclubID, hackclubUsername, hackclubAvatar, hackclubUsername, id); err != nil {
		return fmt.Errorf("failed to bind hackclub identity for fingerprint %s: %w", id, err)
	}
	return nil
}

func (r *mysqlFingerprintRepository) SetStatus(id, status string) error {
	query := `UPDATE fingerprints SET status = ? WHERE id = ?`
	if _, err := r.DB.Exec(query, status, id); err != nil {
		return fmt.Errorf("failed to set status for fingerprint %s: %w", id, err)
	}
	return nil
}

// SetCooldown moves the expiry forward only. A concurrent admission that
// computed an earlier expiry never rolls back a later one.
func (r *mysqlFingerprintRepository) SetCooldown(id string, expires int64) error {
	query := `UPDATE fingerprints SET cooldown_expires = ?
	           WHERE id = ? AND (cooldown_expires IS NULL OR cooldown_expires < ?)`
	if _, err := r.DB.Exec(query, expires, id, expires); err != nil {
		return fmt.Errorf("failed to set cooldown for fingerprint %s: %w", id, err)
	}
	return nil
}

func (r *mysqlFingerprintRepository) ClearCooldown(id string) error {
	query := `UPDATE fingerprints SET cooldown_expires = NULL WHERE id = ?`
	if _, err := r.DB.Exec(query, id); err != nil {
		return fmt.Errorf("failed to clear cooldown for fingerprint %s: %w", id, err)
	}
	return nil
}

func (r *mysqlFingerprintRepository) ClearAllCooldowns() error {
	if _, err := r.DB.Exec(`UPDATE fingerprints SET cooldown_expires = NULL`); err != nil {
		return fmt.Errorf("failed to clear all cooldowns: %w", err)
	}
	return nil
}

func (r *mysqlFingerprintRepository) UpdateLastQueueAttempt(id string, ts int64) error {
	query := `UPDATE fingerprints SET last_queue_attempt = ? WHERE id = ?`
	if _, err := r.DB.Exec(query, ts, id); err != nil {
		return fmt.Errorf("failed to update last queue attempt for fingerprint %s: %w", id, err)
	}
	return nil
}

func (r *mysqlFingerprintRepository) ListDevices() ([]*model.DeviceSummary, error) {
	query := `SELECT f.id, f.first_seen, f.last_queue_attempt, f.cooldown_expires, f.status, f.username,
	           f.github_id, f.github_username, f.github_avatar, f.hackclub_id, f.hackclub_username, f.hackclub_avatar, f.created_at,
	           COUNT(a.id) AS total_attempts,
	           COALESCE(SUM(a.status = 'success'), 0) AS success_count
	           FROM fingerprints f
	           LEFT JOIN queue_attempts a ON a.fingerprint_id = f.id
	           GROUP BY f.id
	           ORDER BY f.first_seen DESC`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*model.DeviceSummary, 0)
	for rows.Next() {
		d := &model.DeviceSummary{}
		err := rows.Scan(&d.ID, &d.FirstSeen, &d.LastQueueAttempt, &d.CooldownExpires, &d.Status, &d.Username,
			&d.GithubID, &d.GithubUsername, &d.GithubAvatar, &d.HackClubID, &d.HackClubUsername, &d.HackClubAvatar, &d.CreatedAt,
			&d.TotalAttempts, &d.SuccessCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device summary: %w", err)
		}
		devices = append(devices, d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListDevices: %w", err)
	}
	return devices, nil
}

func (r *mysqlFingerprintRepository) DeleteAll() error {
	if _, err := r.DB.Exec(`DELETE FROM fingerprints`); err != nil {
		return fmt.Errorf("failed to delete all fingerprints: %w", err)
	}
	return nil
}
