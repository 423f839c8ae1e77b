package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/permission"
)

// Overwrite subject kinds as stored in the subject_kind column.
const (
	// SubjectKindRole marks an overwrite that applies to every holder of a role.
	SubjectKindRole = "role"
	// SubjectKindMember marks an overwrite that applies to a single member.
	SubjectKindMember = "member"
)

// PermissionOverwrite is a channel-scoped allow/deny pair for a role or a member.
// A flag set in neither mask inherits the guild-level value. Allow and Deny never share a bit,
// and a row with both masks empty is deleted rather than stored.
type PermissionOverwrite struct {
	// ChannelID is the channel the overwrite refines.
	ChannelID uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	// SubjectKind is either "role" or "member".
	SubjectKind string `gorm:"type:varchar(10);primaryKey"`
	// SubjectID is the role id or the member's user id.
	SubjectID uuid.UUID `gorm:"type:varchar(36);primaryKey;index"`
	// GuildID is the guild of the channel, kept for guild-wide cascades.
	GuildID uuid.UUID `gorm:"type:varchar(36);not null;index"`
	// Allow holds the explicitly allowed flags.
	Allow permission.Permissions `gorm:"not null;default:0"`
	// Deny holds the explicitly denied flags.
	Deny permission.Permissions `gorm:"not null;default:0"`
	// UpdatedAt is the timestamp of the last change (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the PermissionOverwrite model.
func (PermissionOverwrite) TableName() string {
	return "permission_overwrites"
}
