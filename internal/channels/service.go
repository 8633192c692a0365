// Package channels owns the active channel list: an ordered, in-memory view
// of the stored channel descriptors, indexed both by position and by channel
// number.
package channels

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kvasnell/telezap/internal/db"
	"github.com/kvasnell/telezap/internal/logger"
	"github.com/kvasnell/telezap/internal/models"
)

// Service handles business logic for the channel list
type Service struct {
	repo *db.ChannelRepository

	mu   sync.RWMutex
	list []models.Channel
}

// NewService creates a new channel list service
func NewService(repo *db.ChannelRepository) *Service {
	return &Service{repo: repo}
}

// Load populates the active list from the store, ordered by channel number
func (s *Service) Load(ctx context.Context) error {
	list, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load channel list: %w", err)
	}

	s.mu.Lock()
	s.list = list
	s.mu.Unlock()

	logger.Log.Info().
		Int("channels", len(list)).
		Msg("Channel list loaded")
	return nil
}

// Replace validates, persists and activates a new channel list. Descriptors
// are immutable once created; the whole list is swapped at once.
func (s *Service) Replace(ctx context.Context, list []models.Channel) error {
	if err := validate(list); err != nil {
		logger.Log.Warn().
			Err(err).
			Int("channels", len(list)).
			Msg("Channel list rejected")
		return err
	}

	sorted := make([]models.Channel, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	if err := s.repo.ReplaceAll(ctx, sorted); err != nil {
		return fmt.Errorf("failed to store channel list: %w", err)
	}

	s.mu.Lock()
	s.list = sorted
	s.mu.Unlock()

	logger.Log.Info().
		Int("channels", len(sorted)).
		Msg("Channel list replaced")
	return nil
}

// Count returns the number of channels in the active list
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// At returns the channel at the given list index
func (s *Service) At(index int) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.list) {
		return models.Channel{}, false
	}
	return s.list[index], true
}

// FindByNumber returns the index of the first channel whose number matches
func (s *Service) FindByNumber(number int) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, ch := range s.list {
		if ch.Number == number {
			return i, true
		}
	}
	return 0, false
}

// List returns a copy of the active channel list
func (s *Service) List() []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Channel, len(s.list))
	copy(out, s.list)
	return out
}

// validate checks list invariants: positive unique numbers, non-empty names
// and templates
func validate(list []models.Channel) error {
	seen := make(map[int]bool, len(list))
	for _, ch := range list {
		if ch.Number <= 0 {
			return fmt.Errorf("channel %q: %w", ch.Name, ErrInvalidNumber)
		}
		if seen[ch.Number] {
			return fmt.Errorf("channel number %d: %w", ch.Number, ErrDuplicateNumber)
		}
		seen[ch.Number] = true
		if ch.Name == "" {
			return fmt.Errorf("channel number %d: %w", ch.Number, ErrEmptyName)
		}
		if ch.URLTemplate == "" {
			return fmt.Errorf("channel number %d: %w", ch.Number, ErrEmptyTemplate)
		}
	}
	return nil
}
