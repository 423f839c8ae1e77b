package guild

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/db/controller/overwrite"
	"github.com/voxguild/permengine/internal/db/controller/role"
	"github.com/voxguild/permengine/internal/db/models"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/resolver"
)

// ErrCorruptState is returned when stored permission data breaks an invariant, such as a mask
// with undefined bits or a default role holding dangerous flags. It is never repaired on read.
var ErrCorruptState = errors.New("stored permission state is corrupt")

// LoadSnapshot reads the state of a guild needed to resolve the given users in the given
// channels. Users that are not members and channels of other guilds are left out, so asking
// the snapshot about them yields resolver.ErrInvalidResolveRequest.
func LoadSnapshot(db *gorm.DB, guildID uuid.UUID, users, channels []uuid.UUID) (*resolver.Snapshot, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	g, err := Get(db, guildID)
	if err != nil {
		return nil, err
	}

	snap := resolver.NewSnapshot(g.ID, g.OwnerID)

	if err = loadRoles(db, snap); err != nil {
		return nil, err
	}

	if err = loadMembers(db, snap, users); err != nil {
		return nil, err
	}

	if err = loadChannels(db, snap, channels); err != nil {
		return nil, err
	}

	return snap, nil
}

func loadRoles(db *gorm.DB, snap *resolver.Snapshot) error {
	var roles []models.Role
	if err := db.Where(guildQueryPattern, snap.GuildID).Find(&roles).Error; err != nil {
		return err
	}

	for i := range roles {
		r := &roles[i]

		if err := r.Permissions.Validate(); err != nil {
			return fmt.Errorf("%w: role %s: %w", ErrCorruptState, r.ID, err)
		}

		if r.IsDefault {
			if r.Permissions.ContainsAny(permission.Dangerous) {
				return fmt.Errorf("%w: default role %s holds %s", ErrCorruptState, r.ID,
					r.Permissions.Intersect(permission.Dangerous))
			}

			if snap.DefaultRoleID != uuid.Nil {
				return fmt.Errorf("%w: guild %s has more than one default role", ErrCorruptState, snap.GuildID)
			}

			snap.DefaultRoleID = r.ID
		}

		snap.Roles[r.ID] = role.ToResolver(r)
	}

	if snap.DefaultRoleID == uuid.Nil {
		return fmt.Errorf("%w: guild %s has no default role", ErrCorruptState, snap.GuildID)
	}

	return nil
}

func loadMembers(db *gorm.DB, snap *resolver.Snapshot, users []uuid.UUID) error {
	if len(users) == 0 {
		return nil
	}

	var members []models.Member
	if err := db.Where("guild_id = ? AND user_id IN ?", snap.GuildID, users).Find(&members).Error; err != nil {
		return err
	}

	for _, m := range members {
		snap.Members[m.UserID] = nil
	}

	if _, ok := snap.Members[snap.OwnerID]; !ok && slices.Contains(users, snap.OwnerID) {
		snap.Members[snap.OwnerID] = nil
	}

	var assigned []models.MemberRole
	if err := db.Where("guild_id = ? AND user_id IN ?", snap.GuildID, users).
		Order("role_id").
		Find(&assigned).Error; err != nil {
		return err
	}

	for _, a := range assigned {
		if _, ok := snap.Members[a.UserID]; !ok {
			continue
		}

		if _, ok := snap.Roles[a.RoleID]; !ok {
			return fmt.Errorf("%w: member %s holds unknown role %s", ErrCorruptState, a.UserID, a.RoleID)
		}

		snap.Members[a.UserID] = append(snap.Members[a.UserID], a.RoleID)
	}

	return nil
}

func loadChannels(db *gorm.DB, snap *resolver.Snapshot, channels []uuid.UUID) error {
	if len(channels) == 0 {
		return nil
	}

	var found []models.Channel
	if err := db.Where("guild_id = ? AND id IN ?", snap.GuildID, channels).Find(&found).Error; err != nil {
		return err
	}

	if len(found) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(found))
	for _, c := range found {
		ids = append(ids, c.ID)
		snap.Channels[c.ID] = nil
	}

	var rows []models.PermissionOverwrite
	if err := db.Where("channel_id IN ?", ids).Find(&rows).Error; err != nil {
		return err
	}

	for i := range rows {
		ow, err := overwrite.ToResolver(&rows[i])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptState, err)
		}

		snap.Channels[rows[i].ChannelID] = append(snap.Channels[rows[i].ChannelID], ow)
	}

	return nil
}
