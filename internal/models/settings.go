package models

import (
	"time"
)

// NoLastChannel marks a settings row that has no remembered channel yet.
const NoLastChannel = -1

// Settings represents persisted device configuration.
// It is a singleton table with only one row.
type Settings struct {
	ID           int       `json:"id" gorm:"type:integer;primaryKey;default:1;column:id"`
	StreamServer string    `json:"stream_server" gorm:"type:text;not null;column:stream_server" validate:"required"`
	TimeServer   string    `json:"time_server" gorm:"type:text;default:'';column:time_server"`
	LastChannel  int       `json:"last_channel" gorm:"type:integer;default:-1;column:last_channel"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// DefaultSettings returns settings with default values
func DefaultSettings(streamServer string) *Settings {
	return &Settings{
		ID:           1,
		StreamServer: streamServer,
		TimeServer:   "",
		LastChannel:  NoLastChannel,
		UpdatedAt:    time.Now().UTC(),
	}
}
