package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/db/models"
	"github.com/voxguild/permengine/internal/permission"
)

// PermissionSet is a mask with its flag names.
type PermissionSet struct {
	Names []string               `json:"names"`
	Mask  permission.Permissions `json:"mask"`
}

// NewPermissionSet returns the set for p.
func NewPermissionSet(p permission.Permissions) PermissionSet {
	return PermissionSet{Names: p.Names(), Mask: p}
}

// Role is the API form of models.Role.
type Role struct {
	ID          uuid.UUID     `json:"id"`
	GuildID     uuid.UUID     `json:"guild_id"`
	Name        string        `json:"name"`
	Color       uint32        `json:"color"`
	Position    int           `json:"position"`
	IsDefault   bool          `json:"is_default"`
	Permissions PermissionSet `json:"permissions"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewRole converts r.
func NewRole(r *models.Role) Role {
	return Role{
		ID:          r.ID,
		GuildID:     r.GuildID,
		Name:        r.Name,
		Color:       r.Color,
		Position:    r.Position,
		IsDefault:   r.IsDefault,
		Permissions: NewPermissionSet(r.Permissions),
		UpdatedAt:   r.UpdatedAt,
	}
}

// NewRoles converts rs keeping the order.
func NewRoles(rs []models.Role) []Role {
	out := make([]Role, 0, len(rs))
	for i := range rs {
		out = append(out, NewRole(&rs[i]))
	}

	return out
}

// Overwrite is the API form of models.PermissionOverwrite.
type Overwrite struct {
	ChannelID   uuid.UUID     `json:"channel_id"`
	SubjectKind string        `json:"subject_kind"`
	SubjectID   uuid.UUID     `json:"subject_id"`
	Allow       PermissionSet `json:"allow"`
	Deny        PermissionSet `json:"deny"`
}

// NewOverwrite converts ow.
func NewOverwrite(ow *models.PermissionOverwrite) Overwrite {
	return Overwrite{
		ChannelID:   ow.ChannelID,
		SubjectKind: ow.SubjectKind,
		SubjectID:   ow.SubjectID,
		Allow:       NewPermissionSet(ow.Allow),
		Deny:        NewPermissionSet(ow.Deny),
	}
}

// NewOverwrites converts rows keeping the order.
func NewOverwrites(rows []models.PermissionOverwrite) []Overwrite {
	out := make([]Overwrite, 0, len(rows))
	for i := range rows {
		out = append(out, NewOverwrite(&rows[i]))
	}

	return out
}
