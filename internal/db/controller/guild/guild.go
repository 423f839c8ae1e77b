// Package guild provides storage operations for guilds, channels and memberships, including the
// cascades run when one of them is removed, and the loading of resolver snapshots.
package guild

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/db/controller/overwrite"
	"github.com/voxguild/permengine/internal/db/models"
	"github.com/voxguild/permengine/internal/permission"
)

const (
	idQueryPattern        = "id = ?"
	guildQueryPattern     = "guild_id = ?"
	guildUserQueryPattern = "guild_id = ? AND user_id = ?"
)

var (
	// ErrGuildNotFound is returned when a guild does not exist.
	ErrGuildNotFound = errors.New("guild not found")
	// ErrGuildExists is returned when registering a guild id twice.
	ErrGuildExists = errors.New("guild already exists")
	// ErrChannelNotFound is returned when a channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrChannelExists is returned when registering a channel id twice.
	ErrChannelExists = errors.New("channel already exists")
	// ErrNotMember is returned when a user is not a member of the guild.
	ErrNotMember = errors.New("user is not a member of the guild")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a guild by its ID.
func Get(db *gorm.DB, id uuid.UUID) (*models.Guild, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var g models.Guild

	result := db.Where(idQueryPattern, id).First(&g)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrGuildNotFound
		}

		return nil, result.Error
	}

	return &g, nil
}

// Create stores a guild, its default role and the owner's membership.
func Create(db *gorm.DB, g *models.Guild) (*models.Role, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var count int64
	if err := db.Model(&models.Guild{}).Where(idQueryPattern, g.ID).Count(&count).Error; err != nil {
		return nil, err
	}

	if count > 0 {
		return nil, ErrGuildExists
	}

	if err := db.Create(g).Error; err != nil {
		return nil, err
	}

	def := &models.Role{
		ID:          uuid.New(),
		GuildID:     g.ID,
		Name:        models.DefaultRoleName,
		Position:    0,
		Permissions: permission.DefaultEveryone,
		IsDefault:   true,
	}

	if err := db.Create(def).Error; err != nil {
		return nil, err
	}

	if err := db.Create(&models.Member{GuildID: g.ID, UserID: g.OwnerID}).Error; err != nil {
		return nil, err
	}

	return def, nil
}

// Delete removes a guild and everything scoped to it.
func Delete(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		return ErrDBNil
	}

	scoped := []any{
		&models.PermissionOverwrite{},
		&models.MemberRole{},
		&models.Role{},
		&models.Member{},
		&models.Channel{},
	}

	for _, m := range scoped {
		if err := db.Where(guildQueryPattern, id).Delete(m).Error; err != nil {
			return err
		}
	}

	result := db.Where(idQueryPattern, id).Delete(&models.Guild{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrGuildNotFound
	}

	return nil
}

// GetChannel retrieves a channel by its ID.
func GetChannel(db *gorm.DB, id uuid.UUID) (*models.Channel, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var c models.Channel

	result := db.Where(idQueryPattern, id).First(&c)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}

		return nil, result.Error
	}

	return &c, nil
}

// CreateChannel stores a channel. New channels carry no overwrites.
func CreateChannel(db *gorm.DB, c *models.Channel) error {
	if db == nil {
		return ErrDBNil
	}

	var count int64
	if err := db.Model(&models.Channel{}).Where(idQueryPattern, c.ID).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return ErrChannelExists
	}

	return db.Create(c).Error
}

// DeleteChannel removes a channel and its overwrites.
func DeleteChannel(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		return ErrDBNil
	}

	if err := overwrite.DeleteByChannel(db, id); err != nil {
		return err
	}

	result := db.Where(idQueryPattern, id).Delete(&models.Channel{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrChannelNotFound
	}

	return nil
}

// IsMember reports whether userID belongs to guildID.
func IsMember(db *gorm.DB, guildID, userID uuid.UUID) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}

	var count int64
	if err := db.Model(&models.Member{}).Where(guildUserQueryPattern, guildID, userID).Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

// AddMember records a membership. Adding an existing member is a no-op.
func AddMember(db *gorm.DB, guildID, userID uuid.UUID) error {
	ok, err := IsMember(db, guildID, userID)
	if err != nil || ok {
		return err
	}

	return db.Create(&models.Member{GuildID: guildID, UserID: userID}).Error
}

// RemoveMember deletes a membership, the member's role assignments and the member's channel
// overwrites in the guild.
func RemoveMember(db *gorm.DB, guildID, userID uuid.UUID) error {
	if db == nil {
		return ErrDBNil
	}

	if err := db.Where(guildUserQueryPattern, guildID, userID).Delete(&models.MemberRole{}).Error; err != nil {
		return err
	}

	if err := overwrite.DeleteMemberInGuild(db, guildID, userID); err != nil {
		return err
	}

	result := db.Where(guildUserQueryPattern, guildID, userID).Delete(&models.Member{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNotMember
	}

	return nil
}
