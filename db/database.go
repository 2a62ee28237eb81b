package db

import (
	"database/sql"
	"fmt"
	"log"

	"spotiqueue/config"
	"spotiqueue/core/auth"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't
// exist, and seeds default config values on first run.
func InitDB() error {
	if err := createFingerprintsTable(); err != nil {
		return err
	}
	if err := createQueueAttemptsTable(); err != nil {
		return err
	}
	if err := createBannedTracksTable(); err != nil {
		return err
	}
	if err := createPrequeueTable(); err != nil {
		return err
	}
	if err := createConfigTable(); err != nil {
		return err
	}
	if err := seedDefaultConfig(); err != nil {
		return err
	}

	log.Println("Database initialization completed.")
	return nil
}

func createFingerprintsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS fingerprints (
		id VARCHAR(64) PRIMARY KEY,
		first_seen BIGINT NOT NULL,
		last_queue_attempt BIGINT,
		cooldown_expires BIGINT,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		username VARCHAR(100),
		github_id VARCHAR(64),
		github_username VARCHAR(100),
		github_avatar VARCHAR(512),
		hackclub_id VARCHAR(64),
		hackclub_username VARCHAR(100),
		hackclub_avatar VARCHAR(512),
		created_at BIGINT NOT NULL
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create fingerprints table: %w", err)
	}
	return nil
}

func createQueueAttemptsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS queue_attempts (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		fingerprint_id VARCHAR(64) NOT NULL,
		track_id VARCHAR(64),
		track_name VARCHAR(255),
		artist_name VARCHAR(255),
		status VARCHAR(16) NOT NULL,
		error_message TEXT,
		timestamp BIGINT NOT NULL,
		INDEX idx_attempts_window (fingerprint_id, status, timestamp)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create queue_attempts table: %w", err)
	}
	return nil
}

func createBannedTracksTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS banned_tracks (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		track_id VARCHAR(64) NOT NULL UNIQUE,
		artist_id VARCHAR(64),
		reason TEXT,
		created_at BIGINT NOT NULL
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create banned_tracks table: %w", err)
	}
	return nil
}

func createPrequeueTable() error {
	// pending_track_id is NULL for resolved entries, so the unique key
	// admits at most one pending row per track while allowing any number
	// of approved/declined rows. This is the one invariant that must
	// fail closed under concurrent submits.
	query := `
	CREATE TABLE IF NOT EXISTS prequeue (
		id VARCHAR(36) PRIMARY KEY,
		fingerprint_id VARCHAR(64) NOT NULL,
		track_id VARCHAR(64) NOT NULL,
		track_name VARCHAR(255) NOT NULL,
		artist_name VARCHAR(255) NOT NULL,
		album_art VARCHAR(512),
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		approved_by VARCHAR(100),
		created_at BIGINT NOT NULL,
		pending_track_id VARCHAR(64) AS (CASE WHEN status = 'pending' THEN track_id ELSE NULL END) STORED,
		UNIQUE KEY uq_pending_track (pending_track_id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create prequeue table: %w", err)
	}
	return nil
}

func createConfigTable() error {
	// Also reachable through GORM (model.ConfigEntry); created here so the
	// seed below never races the auto-migration.
	query := "CREATE TABLE IF NOT EXISTS config (`key` VARCHAR(64) PRIMARY KEY, value TEXT NOT NULL, updated_at BIGINT NOT NULL);"
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create config table: %w", err)
	}
	return nil
}

// seedDefaultConfig inserts the default settings on first run. Existing
// keys are left untouched so operator changes survive restarts.
func seedDefaultConfig() error {
	adminHash, err := auth.HashPassword("admin")
	if err != nil {
		return fmt.Errorf("failed to hash default admin password: %w", err)
	}

	defaults := [][2]string{
		{"cooldown_duration", "300"},
		{"songs_before_cooldown", "1"},
		{"fingerprinting_enabled", "true"},
		{"url_input_enabled", "true"},
		{"search_ui_enabled", "true"},
		{"queueing_enabled", "true"},
		{"prequeue_enabled", "false"},
		{"admin_panel_url", ""},
		{"admin_password", adminHash},
		{"user_password", ""},
		{"require_username", "false"},
		{"require_github_auth", "false"},
		{"require_hackclub_auth", "false"},
		{"max_song_duration", "0"},
		{"ban_explicit", "false"},
		{"voting_enabled", "false"},
		{"aura_enabled", "true"},
		{"confetti_enabled", "true"},
		{"slack_prequeue_enabled", "false"},
		{"spotify_connected", "false"},
	}

	stmt, err := DB.Prepare("INSERT IGNORE INTO config (`key`, value, updated_at) VALUES (?, ?, UNIX_TIMESTAMP())")
	if err != nil {
		return fmt.Errorf("failed to prepare config seed statement: %w", err)
	}
	defer stmt.Close()

	for _, kv := range defaults {
		if _, err := stmt.Exec(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to seed config key %s: %w", kv[0], err)
		}
	}
	return nil
}
