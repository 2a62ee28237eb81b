package repository

import (
	"errors"
	"fmt"

	"spotiqueue/db"
	"spotiqueue/model"

	"gorm.io/gorm"
)

// VoteRepository defines the interface for track upvotes.
type VoteRepository interface {
	// Toggle flips the vote for (trackID, fingerprintID) and returns the
	// resulting state plus the new count for the track.
	Toggle(trackID, fingerprintID string) (voted bool, count int64, err error)
	Counts() (map[string]int64, error)
	TracksVotedBy(fingerprintID string) ([]string, error)
	DeleteAll() error
}

// gormVoteRepository implements VoteRepository on the GORM connection.
type gormVoteRepository struct {
	DB *gorm.DB
}

// NewGormVoteRepository creates a new instance backed by the shared GORM connection.
func NewGormVoteRepository() VoteRepository {
	return &gormVoteRepository{DB: db.GormDB}
}

func (r *gormVoteRepository) Toggle(trackID, fingerprintID string) (bool, int64, error) {
	var voted bool
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.Vote
		err := tx.Where("track_id = ? AND fingerprint_id = ?", trackID, fingerprintID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return fmt.Errorf("failed to remove vote: %w", err)
			}
			voted = false
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := model.Vote{TrackID: trackID, FingerprintID: fingerprintID}
			if err := tx.Create(&vote).Error; err != nil {
				return fmt.Errorf("failed to create vote: %w", err)
			}
			voted = true
		default:
			return fmt.Errorf("failed to look up vote: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	var count int64
	if err := r.DB.Model(&model.Vote{}).Where("track_id = ?", trackID).Count(&count).Error; err != nil {
		return voted, 0, fmt.Errorf("failed to count votes for track %s: %w", trackID, err)
	}
	return voted, count, nil
}

func (r *gormVoteRepository) Counts() (map[string]int64, error) {
	type row struct {
		TrackID string
		C       int64
	}
	var rows []row
	err := r.DB.Model(&model.Vote{}).
		Select("track_id, COUNT(*) AS c").
		Group("track_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query vote counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.TrackID] = r.C
	}
	return counts, nil
}

func (r *gormVoteRepository) TracksVotedBy(fingerprintID string) ([]string, error) {
	var trackIDs []string
	err := r.DB.Model(&model.Vote{}).
		Where("fingerprint_id = ?", fingerprintID).
		Pluck("track_id", &trackIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query votes for %s: %w", fingerprintID, err)
	}
	return trackIDs, nil
}

func (r *gormVoteRepository) DeleteAll() error {
	if err := r.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Vote{}).Error; err != nil {
		return fmt.Errorf("failed to delete all votes: %w", err)
	}
	return nil
}
