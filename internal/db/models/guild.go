package models

import (
	"time"

	"github.com/google/uuid"
)

// Guild represents a community server grouping channels, members and roles.
// Only the fields permission resolution needs are kept; everything else about a guild is owned
// by the guild service that notifies this engine about lifecycle changes.
type Guild struct {
	// ID is the unique identifier for the guild, assigned by the guild service.
	ID uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	// Name is the display name of the guild.
	Name string `gorm:"size:100;not null"`
	// OwnerID is the user id of the guild owner. The owner bypasses every permission check.
	OwnerID uuid.UUID `gorm:"type:varchar(36);not null;index"`
	// CreatedAt is the timestamp when the guild was registered (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the guild was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Guild model.
func (Guild) TableName() string {
	return "guilds"
}
