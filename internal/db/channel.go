package db

import (
	"context"
	"fmt"

	"github.com/kvasnell/telezap/internal/models"
)

// ChannelRepository handles database operations for the channel list
type ChannelRepository struct {
	db *DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// List returns all channels ordered by channel number
func (r *ChannelRepository) List(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	result := r.db.WithContext(ctx).Order("number ASC").Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list channels: %w", MapGormError(result.Error))
	}
	return channels, nil
}

// ReplaceAll atomically replaces the stored channel list
func (r *ChannelRepository) ReplaceAll(ctx context.Context, channels []models.Channel) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	if err := tx.Exec("DELETE FROM channels").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear channels: %w", MapGormError(err))
	}

	if len(channels) > 0 {
		if err := tx.Create(&channels).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert channels: %w", MapGormError(err))
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit channel list: %w", MapGormError(err))
	}
	return nil
}

// Count returns the number of stored channels
func (r *ChannelRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Channel{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count channels: %w", MapGormError(result.Error))
	}
	return count, nil
}
