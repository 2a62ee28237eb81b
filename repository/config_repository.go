package repository

import (
	"errors"
	"fmt"

	"spotiqueue/db"
	"spotiqueue/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigRepository defines the interface for the settings store.
type ConfigRepository interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	All() (map[string]string, error)
}

// gormConfigRepository implements ConfigRepository on the GORM connection.
type gormConfigRepository struct {
	DB *gorm.DB
}

// NewGormConfigRepository creates a new instance backed by the shared GORM connection.
func NewGormConfigRepository() ConfigRepository {
	return &gormConfigRepository{DB: db.GormDB}
}

func (r *gormConfigRepository) Get(key string) (string, bool, error) {
	var entry model.ConfigEntry
	err := r.DB.Where("`key` = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get config key %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (r *gormConfigRepository) Set(key, value string) error {
	entry := model.ConfigEntry{Key: key, Value: value}
	err := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set config key %s: %w", key, err)
	}
	return nil
}

func (r *gormConfigRepository) All() (map[string]string, error) {
	var entries []model.ConfigEntry
	if err := r.DB.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	values := make(map[string]string, len(entries))
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	return values, nil
}
