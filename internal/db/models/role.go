package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/permission"
)

// DefaultRoleName is the name of the role every guild member implicitly holds.
const DefaultRoleName = "@everyone"

// Role represents a named set of permissions inside a guild.
// Roles are additive at guild scope: holding more roles can only add capabilities.
type Role struct {
	// ID is the unique identifier for the role.
	ID uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	// GuildID is the owning guild.
	GuildID uuid.UUID `gorm:"type:varchar(36);not null;index"`
	// Name is the display name of the role (e.g. "Moderator").
	Name string `gorm:"size:100;not null"`
	// Color is the 0xRRGGBB display color, 0 meaning no color.
	Color uint32
	// Position ranks the role inside its guild. Higher outranks lower. The default role is
	// always 0; other roles are never renumbered when a role is inserted or deleted, so ties are
	// broken by ID.
	Position int `gorm:"not null;default:0"`
	// Permissions is the guild-scope grant of the role.
	Permissions permission.Permissions `gorm:"not null;default:0"`
	// IsDefault marks the @everyone role. Exactly one per guild, never deletable and never
	// holding a dangerous permission.
	IsDefault bool `gorm:"not null;default:false"`
	// CreatedAt is the timestamp when the role was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the role was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Role model.
func (Role) TableName() string {
	return "roles"
}
