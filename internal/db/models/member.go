package models

import (
	"time"

	"github.com/google/uuid"
)

// Member records that a user belongs to a guild.
// Every member implicitly holds the guild's default role; that membership is never stored as a
// MemberRole row.
type Member struct {
	// GuildID is the guild the user joined.
	GuildID uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	// UserID is the member's user id.
	UserID uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	// JoinedAt is the timestamp when the member joined (managed by GORM).
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the database table name for the Member model.
func (Member) TableName() string {
	return "members"
}

// MemberRole is an explicit role assignment of a guild member.
// The pair (guild, user) together with the set of its role ids forms the member's role
// assignment; order is irrelevant and duplicates are impossible by primary key.
type MemberRole struct {
	// GuildID is the guild both the member and the role belong to.
	GuildID uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	// UserID is the member holding the role.
	UserID uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	// RoleID is the assigned role. Removed when the role is deleted.
	RoleID uuid.UUID `gorm:"type:varchar(36);primaryKey;index"`
	// CreatedAt is the timestamp when the role was assigned (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the MemberRole model.
func (MemberRole) TableName() string {
	return "member_roles"
}
