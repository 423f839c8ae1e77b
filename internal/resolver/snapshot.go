package resolver

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/permission"
)

// ErrInvalidResolveRequest is returned when a user is not a member of the guild or a channel is
// not part of it. It signals a caller bug, never "no permissions".
var ErrInvalidResolveRequest = errors.New("invalid resolve request")

// Snapshot is a consistent view of one guild, loaded by the caller under the guild's lock or
// inside a single read transaction. It may hold only the members and channels a request needs.
type Snapshot struct {
	GuildID       uuid.UUID
	OwnerID       uuid.UUID
	DefaultRoleID uuid.UUID
	Roles         map[uuid.UUID]Role
	// Members maps a member's user id to the ids of their explicitly assigned roles.
	Members map[uuid.UUID][]uuid.UUID
	// Channels maps a channel id to its overwrites.
	Channels map[uuid.UUID][]Overwrite
}

// NewSnapshot returns an empty snapshot for a guild.
func NewSnapshot(guildID, ownerID uuid.UUID) *Snapshot {
	return &Snapshot{
		GuildID:  guildID,
		OwnerID:  ownerID,
		Roles:    make(map[uuid.UUID]Role),
		Members:  make(map[uuid.UUID][]uuid.UUID),
		Channels: make(map[uuid.UUID][]Overwrite),
	}
}

// IsMember reports whether userID belongs to the guild. The owner is always a member.
func (s *Snapshot) IsMember(userID uuid.UUID) bool {
	if userID == s.OwnerID {
		return true
	}

	_, ok := s.Members[userID]

	return ok
}

// Role returns the role with the given id.
func (s *Snapshot) Role(id uuid.UUID) (Role, bool) {
	r, ok := s.Roles[id]
	return r, ok
}

// HeldRoles returns the roles held by a member, the default role first.
func (s *Snapshot) HeldRoles(userID uuid.UUID) ([]Role, error) {
	if !s.IsMember(userID) {
		return nil, fmt.Errorf("%w: user %s is not a member of guild %s", ErrInvalidResolveRequest, userID, s.GuildID)
	}

	def, ok := s.Roles[s.DefaultRoleID]
	if !ok {
		return nil, fmt.Errorf("%w: guild %s has no default role", ErrInvalidResolveRequest, s.GuildID)
	}

	assigned := s.Members[userID]
	roles := make([]Role, 0, len(assigned)+1)
	roles = append(roles, def)

	for _, id := range assigned {
		if r, ok := s.Roles[id]; ok && !r.IsDefault {
			roles = append(roles, r)
		}
	}

	return roles, nil
}

// Base returns a member's guild-scope permissions.
func (s *Snapshot) Base(userID uuid.UUID) (permission.Permissions, error) {
	roles, err := s.HeldRoles(userID)
	if err != nil {
		return 0, err
	}

	return Base(userID == s.OwnerID, roles), nil
}

// HighestPosition returns the highest position among the member's roles. Members holding only
// the default role get 0.
func (s *Snapshot) HighestPosition(userID uuid.UUID) (int, error) {
	roles, err := s.HeldRoles(userID)
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, r := range roles {
		if r.Position > highest {
			highest = r.Position
		}
	}

	return highest, nil
}

// Resolve returns the effective permissions of userID in channelID.
func (s *Snapshot) Resolve(userID, channelID uuid.UUID) (permission.Permissions, error) {
	overwrites, ok := s.Channels[channelID]
	if !ok {
		return 0, fmt.Errorf("%w: channel %s is not part of guild %s", ErrInvalidResolveRequest, channelID, s.GuildID)
	}

	roles, err := s.HeldRoles(userID)
	if err != nil {
		return 0, err
	}

	return Compute(Input{
		UserID:        userID,
		IsOwner:       userID == s.OwnerID,
		DefaultRoleID: s.DefaultRoleID,
		Roles:         roles,
		Overwrites:    overwrites,
	}), nil
}
