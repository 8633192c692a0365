package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kvasnell/telezap/internal/models"
)

// SettingsRepository handles database operations for device settings.
// Settings is a singleton table with only one row.
type SettingsRepository struct {
	db                  *DB
	defaultStreamServer string
}

// NewSettingsRepository creates a new settings repository.
// defaultStreamServer seeds the singleton row on first access.
func NewSettingsRepository(db *DB, defaultStreamServer string) *SettingsRepository {
	return &SettingsRepository{db: db, defaultStreamServer: defaultStreamServer}
}

// Get retrieves the settings (creates with defaults if not exists)
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	result := r.db.WithContext(ctx).Where("id = ?", 1).First(&settings)

	if result.Error != nil {
		if errors.Is(MapGormError(result.Error), ErrNotFound) {
			defaultSettings := models.DefaultSettings(r.defaultStreamServer)
			if err := r.db.WithContext(ctx).Create(defaultSettings).Error; err != nil {
				return nil, fmt.Errorf("failed to create default settings: %w", MapGormError(err))
			}
			return defaultSettings, nil
		}
		return nil, MapGormError(result.Error)
	}

	return &settings, nil
}

// Update updates the settings (singleton row)
func (r *SettingsRepository) Update(ctx context.Context, settings *models.Settings) error {
	// Ensure we're always updating the singleton row
	settings.ID = 1
	settings.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).Where("id = ?", 1).Save(settings)
	if result.Error != nil {
		return fmt.Errorf("failed to update settings: %w", MapGormError(result.Error))
	}
	return nil
}

// SetStreamServer persists a new stream server endpoint
func (r *SettingsRepository) SetStreamServer(ctx context.Context, endpoint string) error {
	settings, err := r.Get(ctx)
	if err != nil {
		return err
	}
	settings.StreamServer = endpoint
	return r.Update(ctx, settings)
}

// SetTimeServer persists a new time server override. An empty string clears
// the override so only the built-in fallback set is used.
func (r *SettingsRepository) SetTimeServer(ctx context.Context, host string) error {
	settings, err := r.Get(ctx)
	if err != nil {
		return err
	}
	settings.TimeServer = host
	return r.Update(ctx, settings)
}

// SetLastChannel persists the index of the last played channel
func (r *SettingsRepository) SetLastChannel(ctx context.Context, index int) error {
	settings, err := r.Get(ctx)
	if err != nil {
		return err
	}
	settings.LastChannel = index
	return r.Update(ctx, settings)
}
