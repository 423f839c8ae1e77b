// Package overwrite provides storage operations for channel permission overwrites.
package overwrite

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/db/models"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/resolver"
)

const (
	keyQueryPattern     = "channel_id = ? AND subject_kind = ? AND subject_id = ?"
	channelQueryPattern = "channel_id = ?"
)

var (
	// ErrConflictingDelta is returned when a delta puts the same flag in more than one of
	// allow, deny and inherit.
	ErrConflictingDelta = errors.New("delta sets the same flag to more than one state")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Delta describes a change to an overwrite. Flags in Allow become allowed, flags in Deny become
// denied and flags in Inherit go back to inheriting. Flags in none of them keep their state.
type Delta struct {
	Allow   permission.Permissions
	Deny    permission.Permissions
	Inherit permission.Permissions
}

// Touched returns every flag the delta changes.
func (d Delta) Touched() permission.Permissions {
	return d.Allow | d.Deny | d.Inherit
}

// Validate checks the three masks are disjoint and only carry defined flags.
func (d Delta) Validate() error {
	if d.Allow&d.Deny != 0 || d.Allow&d.Inherit != 0 || d.Deny&d.Inherit != 0 {
		return ErrConflictingDelta
	}

	return d.Touched().Validate()
}

// Merge applies d to an (allow, deny) pair. A flag newly allowed is cleared from deny and the
// other way round, so the result never shares a bit.
func Merge(allow, deny permission.Permissions, d Delta) (permission.Permissions, permission.Permissions) {
	allow = allow.Union(d.Allow).Subtract(d.Deny | d.Inherit)
	deny = deny.Union(d.Deny).Subtract(d.Allow | d.Inherit)

	return allow, deny
}

// Get retrieves the overwrite of a subject on a channel. It returns nil, nil when absent.
func Get(db *gorm.DB, channelID uuid.UUID, subject resolver.Subject) (*models.PermissionOverwrite, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var ow models.PermissionOverwrite

	result := db.Where(keyQueryPattern, channelID, subject.Kind.String(), subject.ID).First(&ow)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil //nolint:nilnil // absent is not an error
		}

		return nil, result.Error
	}

	return &ow, nil
}

// Apply merges d into the stored overwrite of subject on channel, creating it if needed.
// When the merged masks are both empty the row is deleted and nil is returned.
func Apply(
	db *gorm.DB,
	guildID, channelID uuid.UUID,
	subject resolver.Subject,
	d Delta,
) (before, after *models.PermissionOverwrite, err error) {
	if db == nil {
		return nil, nil, ErrDBNil
	}

	if err = d.Validate(); err != nil {
		return nil, nil, err
	}

	if before, err = Get(db, channelID, subject); err != nil {
		return nil, nil, err
	}

	var allow, deny permission.Permissions
	if before != nil {
		allow, deny = before.Allow, before.Deny
	}

	allow, deny = Merge(allow, deny, d)

	if allow.IsEmpty() && deny.IsEmpty() {
		if before != nil {
			if _, err = Delete(db, channelID, subject); err != nil {
				return nil, nil, err
			}
		}

		return before, nil, nil
	}

	after = &models.PermissionOverwrite{
		ChannelID:   channelID,
		SubjectKind: subject.Kind.String(),
		SubjectID:   subject.ID,
		GuildID:     guildID,
		Allow:       allow,
		Deny:        deny,
	}

	if before == nil {
		err = db.Create(after).Error
	} else {
		err = db.Model(&models.PermissionOverwrite{}).
			Where(keyQueryPattern, channelID, subject.Kind.String(), subject.ID).
			Updates(map[string]any{"allow": allow, "deny": deny}).Error
	}

	if err != nil {
		return nil, nil, err
	}

	return before, after, nil
}

// Delete removes the overwrite of a subject on a channel. It reports whether a row existed.
func Delete(db *gorm.DB, channelID uuid.UUID, subject resolver.Subject) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}

	result := db.Where(keyQueryPattern, channelID, subject.Kind.String(), subject.ID).
		Delete(&models.PermissionOverwrite{})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// ListByChannel returns the overwrites of a channel, role overwrites first, then by subject id.
func ListByChannel(db *gorm.DB, channelID uuid.UUID) ([]models.PermissionOverwrite, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var rows []models.PermissionOverwrite
	if err := db.Where(channelQueryPattern, channelID).Find(&rows).Error; err != nil {
		return nil, err
	}

	if err := Sort(rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// Sort orders overwrites role first, then by subject id. It fails on an unknown subject kind.
func Sort(rows []models.PermissionOverwrite) error {
	kinds := make([]resolver.SubjectKind, len(rows))

	for i := range rows {
		k, err := resolver.ParseSubjectKind(rows[i].SubjectKind)
		if err != nil {
			return err
		}

		kinds[i] = k
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		sa := resolver.Subject{Kind: kinds[idx[a]], ID: rows[idx[a]].SubjectID}
		sb := resolver.Subject{Kind: kinds[idx[b]], ID: rows[idx[b]].SubjectID}

		return sa.Less(sb)
	})

	sorted := make([]models.PermissionOverwrite, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}

	copy(rows, sorted)

	return nil
}

// ToResolver converts a stored overwrite into the resolver's view, checking its invariants.
func ToResolver(ow *models.PermissionOverwrite) (resolver.Overwrite, error) {
	kind, err := resolver.ParseSubjectKind(ow.SubjectKind)
	if err != nil {
		return resolver.Overwrite{}, err
	}

	if err = ow.Allow.Validate(); err != nil {
		return resolver.Overwrite{}, fmt.Errorf("overwrite %s/%s allow: %w", ow.ChannelID, ow.SubjectID, err)
	}

	if err = ow.Deny.Validate(); err != nil {
		return resolver.Overwrite{}, fmt.Errorf("overwrite %s/%s deny: %w", ow.ChannelID, ow.SubjectID, err)
	}

	if ow.Allow.ContainsAny(ow.Deny) {
		return resolver.Overwrite{}, fmt.Errorf("overwrite %s/%s: %w", ow.ChannelID, ow.SubjectID, ErrConflictingDelta)
	}

	return resolver.Overwrite{
		Subject: resolver.Subject{Kind: kind, ID: ow.SubjectID},
		Allow:   ow.Allow,
		Deny:    ow.Deny,
	}, nil
}

// DeleteByChannel removes every overwrite of a channel.
func DeleteByChannel(db *gorm.DB, channelID uuid.UUID) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Where(channelQueryPattern, channelID).Delete(&models.PermissionOverwrite{}).Error
}

// DeleteMemberInGuild removes every member overwrite of userID on the channels of guildID.
func DeleteMemberInGuild(db *gorm.DB, guildID, userID uuid.UUID) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Where("guild_id = ? AND subject_kind = ? AND subject_id = ?", guildID, models.SubjectKindMember, userID).
		Delete(&models.PermissionOverwrite{}).Error
}
