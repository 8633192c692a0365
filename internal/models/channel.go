package models

import (
	"time"
)

// Channel represents a TV channel descriptor. The URL template may contain
// the placeholders {serverip}, {timestamp} and {starttime}, which are
// substituted at play time.
type Channel struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	Number      int       `json:"number" gorm:"type:integer;not null;uniqueIndex;column:number" validate:"required,gt=0"`
	Name        string    `json:"name" gorm:"type:text;not null;column:name" validate:"required,min=1,max=255"`
	URLTemplate string    `json:"url_template" gorm:"type:text;not null;column:url_template" validate:"required"`
	CreatedAt   time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewChannel creates a new Channel descriptor
func NewChannel(number int, name, urlTemplate string) *Channel {
	return &Channel{
		Number:      number,
		Name:        name,
		URLTemplate: urlTemplate,
		CreatedAt:   time.Now().UTC(),
	}
}
