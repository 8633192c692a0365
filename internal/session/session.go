package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PlaybackSession records the single currently playing stream.
// It is kept in memory only, never persisted.
type PlaybackSession struct {
	ID            uuid.UUID `json:"id"`
	ChannelIndex  int       `json:"channel_index"`
	ChannelNumber int       `json:"channel_number"`
	Address       string    `json:"address"`
	StartedAt     time.Time `json:"started_at"`
	mu            sync.RWMutex
	lastAccess    time.Time
}

// NewPlaybackSession creates a session record for a freshly acquired stream
func NewPlaybackSession(channelIndex, channelNumber int, address string) *PlaybackSession {
	now := time.Now().UTC()
	return &PlaybackSession{
		ID:            uuid.New(),
		ChannelIndex:  channelIndex,
		ChannelNumber: channelNumber,
		Address:       address,
		StartedAt:     now,
		lastAccess:    now,
	}
}

// Touch updates the last access time to now (thread-safe)
func (s *PlaybackSession) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now().UTC()
}

// LastAccess returns the last access time (thread-safe)
func (s *PlaybackSession) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

// Age returns the time since the stream was acquired
func (s *PlaybackSession) Age() time.Duration {
	return time.Since(s.StartedAt)
}
