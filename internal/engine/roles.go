package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/audit"
	"github.com/voxguild/permengine/internal/db/controller/guild"
	"github.com/voxguild/permengine/internal/db/controller/role"
	"github.com/voxguild/permengine/internal/db/models"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/resolver"
)

const maxRoleNameLength = 100

// RoleInput describes a role to create.
type RoleInput struct {
	Name        string
	Color       uint32
	Permissions permission.Permissions
}

// RolePatch lists the role attributes to change. Nil fields are left as they are.
type RolePatch struct {
	Name        *string
	Color       *uint32
	Permissions *permission.Permissions
	Position    *int
}

func normalizeRoleName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxRoleNameLength {
		return "", fmt.Errorf("%w: role name must be 1 to %d characters", ErrInvalidInput, maxRoleNameLength)
	}

	return name, nil
}

// CreateRole adds a role to a guild, ranked above every existing role.
func (e *Engine) CreateRole(
	ctx context.Context,
	guildID uuid.UUID,
	in RoleInput,
	requestedBy uuid.UUID,
) (created *models.Role, err error) {
	done := e.track("create_role")
	defer func() { done(err) }()

	name, err := normalizeRoleName(in.Name)
	if err != nil {
		return nil, err
	}

	if err = in.Permissions.Validate(); err != nil {
		return nil, invalid(err)
	}

	err = e.write(ctx, guildID, func(tx *gorm.DB) ([]audit.Event, error) {
		_, ed, err := loadEditor(tx, guildID, requestedBy)
		if err != nil {
			return nil, err
		}

		if err = ed.require(permission.ManageRoles); err != nil {
			return nil, err
		}

		if err = ed.ceiling(in.Permissions); err != nil {
			return nil, err
		}

		highest, err := role.HighestPosition(tx, guildID)
		if err != nil {
			return nil, err
		}

		r := &models.Role{
			GuildID:     guildID,
			Name:        name,
			Color:       in.Color,
			Position:    highest + 1,
			Permissions: in.Permissions,
		}

		if err = role.Create(tx, r); err != nil {
			return nil, err
		}

		created = r

		return []audit.Event{{
			Kind:     audit.RoleCreated,
			Actor:    requestedBy,
			GuildID:  guildID,
			TargetID: r.ID,
			After:    &audit.Masks{Permissions: r.Permissions},
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateRole changes the attributes of a role.
func (e *Engine) UpdateRole(
	ctx context.Context,
	roleID uuid.UUID,
	patch RolePatch,
	requestedBy uuid.UUID,
) (updated *models.Role, err error) {
	done := e.track("update_role")
	defer func() { done(err) }()

	if patch.Name != nil {
		name, err := normalizeRoleName(*patch.Name)
		if err != nil {
			return nil, err
		}

		patch.Name = &name
	}

	if patch.Permissions != nil {
		if err = patch.Permissions.Validate(); err != nil {
			return nil, invalid(err)
		}
	}

	guildID, err := e.roleGuild(roleID)
	if err != nil {
		return nil, err
	}

	err = e.write(ctx, guildID, func(tx *gorm.DB) ([]audit.Event, error) {
		r, err := role.GetInGuild(tx, guildID, roleID)
		if err != nil {
			return nil, err
		}

		_, ed, err := loadEditor(tx, guildID, requestedBy)
		if err != nil {
			return nil, err
		}

		if err = ed.require(permission.ManageRoles); err != nil {
			return nil, err
		}

		if err = ed.outranks(r.Position); err != nil {
			return nil, err
		}

		before := r.Permissions
		changed := false

		if patch.Permissions != nil {
			if r.IsDefault {
				if err = checkDefaultMask(*patch.Permissions); err != nil {
					return nil, err
				}
			}

			if err = ed.ceiling(before ^ *patch.Permissions); err != nil {
				return nil, err
			}

			changed = changed || r.Permissions != *patch.Permissions
			r.Permissions = *patch.Permissions
		}

		if patch.Position != nil {
			if err = checkPosition(r, ed, *patch.Position); err != nil {
				return nil, err
			}

			changed = changed || r.Position != *patch.Position
			r.Position = *patch.Position
		}

		if patch.Name != nil {
			changed = changed || r.Name != *patch.Name
			r.Name = *patch.Name
		}

		if patch.Color != nil {
			changed = changed || r.Color != *patch.Color
			r.Color = *patch.Color
		}

		updated = r

		if !changed {
			return nil, nil
		}

		if err = role.Save(tx, r); err != nil {
			return nil, err
		}

		return []audit.Event{{
			Kind:     audit.RoleUpdated,
			Actor:    requestedBy,
			GuildID:  guildID,
			TargetID: r.ID,
			Before:   &audit.Masks{Permissions: before},
			After:    &audit.Masks{Permissions: r.Permissions},
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// checkPosition validates moving r to position. The default role stays at 0 and a non-owner
// may only place a role strictly below their own highest role.
func checkPosition(r *models.Role, ed editor, position int) error {
	if r.IsDefault {
		if position != 0 {
			return fmt.Errorf("%w: the default role stays at position 0", ErrInvalidInput)
		}

		return nil
	}

	if position < 1 {
		return fmt.Errorf("%w: role position must be at least 1", ErrInvalidInput)
	}

	return ed.outranks(position)
}

// DeleteRole removes a role, its assignments and its channel overwrites.
func (e *Engine) DeleteRole(ctx context.Context, roleID, requestedBy uuid.UUID) (err error) {
	done := e.track("delete_role")
	defer func() { done(err) }()

	guildID, err := e.roleGuild(roleID)
	if err != nil {
		return err
	}

	return e.write(ctx, guildID, func(tx *gorm.DB) ([]audit.Event, error) {
		r, err := role.GetInGuild(tx, guildID, roleID)
		if err != nil {
			return nil, err
		}

		if r.IsDefault {
			return nil, ErrCannotDeleteDefaultRole
		}

		_, ed, err := loadEditor(tx, guildID, requestedBy)
		if err != nil {
			return nil, err
		}

		if err = ed.require(permission.ManageRoles); err != nil {
			return nil, err
		}

		if err = ed.outranks(r.Position); err != nil {
			return nil, err
		}

		cascade, err := role.Delete(tx, r)
		if err != nil {
			return nil, err
		}

		return []audit.Event{{
			Kind:     audit.RoleDeleted,
			Actor:    requestedBy,
			GuildID:  guildID,
			TargetID: r.ID,
			Before:   &audit.Masks{Permissions: r.Permissions},
			Cascade:  &audit.Cascade{UserIDs: cascade.UserIDs, ChannelIDs: cascade.ChannelIDs},
		}}, nil
	})
}

// AssignRole gives a member a role. Assigning a held role, or the default role, changes nothing.
func (e *Engine) AssignRole(ctx context.Context, guildID, userID, roleID, requestedBy uuid.UUID) (err error) {
	done := e.track("assign_role")
	defer func() { done(err) }()

	return e.write(ctx, guildID, func(tx *gorm.DB) ([]audit.Event, error) {
		r, err := e.authorizeAssignment(tx, guildID, userID, roleID, requestedBy)
		if err != nil {
			return nil, err
		}

		if r.IsDefault {
			return nil, nil
		}

		changed, err := role.Assign(tx, guildID, userID, roleID)
		if err != nil || !changed {
			return nil, err
		}

		return []audit.Event{{
			Kind:     audit.RoleAssigned,
			Actor:    requestedBy,
			GuildID:  guildID,
			TargetID: roleID,
			Subject:  resolver.MemberSubject(userID).String(),
		}}, nil
	})
}

// UnassignRole takes a role from a member. Unassigning a role the member does not hold changes
// nothing; the default role cannot be unassigned.
func (e *Engine) UnassignRole(ctx context.Context, guildID, userID, roleID, requestedBy uuid.UUID) (err error) {
	done := e.track("unassign_role")
	defer func() { done(err) }()

	return e.write(ctx, guildID, func(tx *gorm.DB) ([]audit.Event, error) {
		r, err := e.authorizeAssignment(tx, guildID, userID, roleID, requestedBy)
		if err != nil {
			return nil, err
		}

		if r.IsDefault {
			return nil, ErrDefaultRoleImplicit
		}

		changed, err := role.Unassign(tx, guildID, userID, roleID)
		if err != nil || !changed {
			return nil, err
		}

		return []audit.Event{{
			Kind:     audit.RoleUnassigned,
			Actor:    requestedBy,
			GuildID:  guildID,
			TargetID: roleID,
			Subject:  resolver.MemberSubject(userID).String(),
		}}, nil
	})
}

func (e *Engine) authorizeAssignment(tx *gorm.DB, guildID, userID, roleID, requestedBy uuid.UUID) (*models.Role, error) {
	r, err := role.GetInGuild(tx, guildID, roleID)
	if err != nil {
		return nil, err
	}

	_, ed, err := loadEditor(tx, guildID, requestedBy)
	if err != nil {
		return nil, err
	}

	if err = ed.require(permission.ManageRoles); err != nil {
		return nil, err
	}

	if err = ed.outranks(r.Position); err != nil {
		return nil, err
	}

	ok, err := guild.IsMember(tx, guildID, userID)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotMember, userID)
	}

	return r, nil
}

// ListRoles returns the roles of a guild, highest position first.
func (e *Engine) ListRoles(ctx context.Context, guildID uuid.UUID) (roles []models.Role, err error) {
	done := e.track("list_roles")
	defer func() { done(err) }()

	err = e.read(ctx, guildID, func(tx *gorm.DB) error {
		if _, err := guild.Get(tx, guildID); err != nil {
			return err
		}

		roles, err = role.ListByGuild(tx, guildID)

		return err
	})

	return roles, err
}

// MemberRoles returns the roles a member holds, the default role included, highest first.
func (e *Engine) MemberRoles(ctx context.Context, guildID, userID uuid.UUID) (roles []models.Role, err error) {
	done := e.track("member_roles")
	defer func() { done(err) }()

	err = e.read(ctx, guildID, func(tx *gorm.DB) error {
		if _, err := guild.Get(tx, guildID); err != nil {
			return err
		}

		ok, err := guild.IsMember(tx, guildID, userID)
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("%w: %s", ErrNotMember, userID)
		}

		def, err := role.Default(tx, guildID)
		if err != nil {
			return err
		}

		ids, err := role.MemberRoleIDs(tx, guildID, userID)
		if err != nil {
			return err
		}

		roles = append(roles, *def)

		for _, id := range ids {
			r, err := role.GetInGuild(tx, guildID, id)
			if err != nil {
				return err
			}

			roles = append(roles, *r)
		}

		sort.SliceStable(roles, func(i, j int) bool {
			if roles[i].Position != roles[j].Position {
				return roles[i].Position > roles[j].Position
			}

			return roles[i].ID.String() < roles[j].ID.String()
		})

		return nil
	})

	return roles, err
}

// roleGuild finds the guild of a role. A role never moves between guilds, so this lookup may
// run before the guild lock is taken.
func (e *Engine) roleGuild(roleID uuid.UUID) (uuid.UUID, error) {
	r, err := role.Get(e.db, roleID)
	if err != nil {
		return uuid.Nil, storeError(err)
	}

	return r.GuildID, nil
}
