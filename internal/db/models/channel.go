package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel represents a text or voice channel inside a guild.
// A new channel has no permission overwrites; every flag inherits from the guild level.
type Channel struct {
	// ID is the unique identifier for the channel, assigned by the guild service.
	ID uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	// GuildID is the owning guild. Deleting the guild deletes the channel.
	GuildID uuid.UUID `gorm:"type:varchar(36);not null;index"`
	// Name is the display name of the channel.
	Name string `gorm:"size:100"`
	// CreatedAt is the timestamp when the channel was registered (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the Channel model.
func (Channel) TableName() string {
	return "channels"
}
