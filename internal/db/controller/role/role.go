// Package role provides storage operations for guild roles and member role assignments.
//
// Functions take a *gorm.DB which may be a transaction; authority checks are not done here but
// by the engine that wraps every write.
package role

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/db/models"
	"github.com/voxguild/permengine/internal/resolver"
)

const (
	idQueryPattern         = "id = ?"
	guildQueryPattern      = "guild_id = ?"
	guildUserQueryPattern  = "guild_id = ? AND user_id = ?"
	subjectQueryPattern    = "subject_kind = ? AND subject_id = ?"
	memberRoleQueryPattern = "guild_id = ? AND user_id = ? AND role_id = ?"
)

var (
	// ErrRoleNotFound is returned when a role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrDefaultRoleMissing is returned when a guild has no default role.
	ErrDefaultRoleMissing = errors.New("guild has no default role")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Cascade lists what was removed together with a role.
type Cascade struct {
	// UserIDs are the members that lost the role.
	UserIDs []uuid.UUID
	// ChannelIDs are the channels whose overwrite for the role was removed.
	ChannelIDs []uuid.UUID
}

// Get retrieves a role by its ID.
func Get(db *gorm.DB, id uuid.UUID) (*models.Role, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var r models.Role

	result := db.Where(idQueryPattern, id).First(&r)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}

		return nil, result.Error
	}

	return &r, nil
}

// GetInGuild retrieves a role and checks it belongs to guildID.
func GetInGuild(db *gorm.DB, guildID, id uuid.UUID) (*models.Role, error) {
	r, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	if r.GuildID != guildID {
		return nil, ErrRoleNotFound
	}

	return r, nil
}

// Default retrieves the default role of a guild.
func Default(db *gorm.DB, guildID uuid.UUID) (*models.Role, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var r models.Role

	result := db.Where(guildQueryPattern+" AND is_default = ?", guildID, true).First(&r)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDefaultRoleMissing
		}

		return nil, result.Error
	}

	return &r, nil
}

// ListByGuild retrieves all roles of a guild, highest position first.
func ListByGuild(db *gorm.DB, guildID uuid.UUID) ([]models.Role, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var roles []models.Role

	result := db.Where(guildQueryPattern, guildID).Order("position DESC").Order("id ASC").Find(&roles)
	if result.Error != nil {
		return nil, result.Error
	}

	return roles, nil
}

// HighestPosition returns the highest role position in a guild, 0 if only the default role exists.
func HighestPosition(db *gorm.DB, guildID uuid.UUID) (int, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	var highest sql.NullInt64

	row := db.Model(&models.Role{}).Where(guildQueryPattern, guildID).Select("MAX(position)").Row()
	if err := row.Scan(&highest); err != nil {
		return 0, err
	}

	return int(highest.Int64), nil
}

// Create stores a new role.
func Create(db *gorm.DB, r *models.Role) error {
	if db == nil {
		return ErrDBNil
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	return db.Create(r).Error
}

// Save writes every field of an existing role.
func Save(db *gorm.DB, r *models.Role) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Save(r)
	if result.Error != nil {
		return result.Error
	}

	return nil
}

// Delete removes a role together with its assignments and its channel overwrites.
func Delete(db *gorm.DB, r *models.Role) (Cascade, error) {
	var cascade Cascade

	if db == nil {
		return cascade, ErrDBNil
	}

	if err := db.Model(&models.MemberRole{}).
		Where("role_id = ?", r.ID).
		Order("user_id").
		Pluck("user_id", &cascade.UserIDs).Error; err != nil {
		return cascade, err
	}

	if err := db.Model(&models.PermissionOverwrite{}).
		Where(subjectQueryPattern, models.SubjectKindRole, r.ID).
		Order("channel_id").
		Pluck("channel_id", &cascade.ChannelIDs).Error; err != nil {
		return cascade, err
	}

	if err := db.Where("role_id = ?", r.ID).Delete(&models.MemberRole{}).Error; err != nil {
		return cascade, err
	}

	if err := db.Where(subjectQueryPattern, models.SubjectKindRole, r.ID).
		Delete(&models.PermissionOverwrite{}).Error; err != nil {
		return cascade, err
	}

	result := db.Where(idQueryPattern, r.ID).Delete(&models.Role{})
	if result.Error != nil {
		return cascade, result.Error
	}

	if result.RowsAffected == 0 {
		return cascade, ErrRoleNotFound
	}

	return cascade, nil
}

// Assign adds an explicit role assignment. It reports whether a row was created; assigning a
// role that is already held is a no-op.
func Assign(db *gorm.DB, guildID, userID, roleID uuid.UUID) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}

	var count int64
	if err := db.Model(&models.MemberRole{}).
		Where(memberRoleQueryPattern, guildID, userID, roleID).
		Count(&count).Error; err != nil {
		return false, err
	}

	if count > 0 {
		return false, nil
	}

	if err := db.Create(&models.MemberRole{GuildID: guildID, UserID: userID, RoleID: roleID}).Error; err != nil {
		return false, err
	}

	return true, nil
}

// Unassign removes an explicit role assignment. It reports whether a row was removed.
func Unassign(db *gorm.DB, guildID, userID, roleID uuid.UUID) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}

	result := db.Where(memberRoleQueryPattern, guildID, userID, roleID).Delete(&models.MemberRole{})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// MemberRoleIDs returns the explicitly assigned role ids of a member.
func MemberRoleIDs(db *gorm.DB, guildID, userID uuid.UUID) ([]uuid.UUID, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var ids []uuid.UUID

	if err := db.Model(&models.MemberRole{}).
		Where(guildUserQueryPattern, guildID, userID).
		Order("role_id").
		Pluck("role_id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}

// ToResolver converts a stored role into the resolver's view.
func ToResolver(r *models.Role) resolver.Role {
	return resolver.Role{
		ID:          r.ID,
		Position:    r.Position,
		Permissions: r.Permissions,
		IsDefault:   r.IsDefault,
	}
}
