package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/audit"
	"github.com/voxguild/permengine/internal/db/controller/guild"
	"github.com/voxguild/permengine/internal/db/models"
)

// GuildInput describes a guild announced by the guild service.
type GuildInput struct {
	// ID of the guild. A nil id gets a fresh one.
	ID      uuid.UUID
	Name    string
	OwnerID uuid.UUID
}

// ChannelInput describes a channel announced by the guild service.
type ChannelInput struct {
	// ID of the channel. A nil id gets a fresh one.
	ID   uuid.UUID
	Name string
}

// CreateGuild registers a guild together with its default role and the owner's membership.
func (e *Engine) CreateGuild(ctx context.Context, in GuildInput) (g *models.Guild, def *models.Role, err error) {
	done := e.track("create_guild")
	defer func() { done(err) }()

	if in.OwnerID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: a guild needs an owner", ErrInvalidInput)
	}

	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}

	g = &models.Guild{ID: in.ID, Name: strings.TrimSpace(in.Name), OwnerID: in.OwnerID}

	err = e.write(ctx, g.ID, func(tx *gorm.DB) ([]audit.Event, error) {
		var err error
		def, err = guild.Create(tx, g)

		return nil, err
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("guild_id", g.ID.String()).Str("owner_id", g.OwnerID.String()).Msg("guild created")

	return g, def, nil
}

// DeleteGuild removes a guild with its roles, assignments, members, channels and overwrites.
func (e *Engine) DeleteGuild(ctx context.Context, guildID uuid.UUID) (err error) {
	done := e.track("delete_guild")
	defer func() { done(err) }()

	err = e.write(ctx, guildID, func(tx *gorm.DB) ([]audit.Event, error) {
		return nil, guild.Delete(tx, guildID)
	})
	if err != nil {
		return err
	}

	log.Info().Str("guild_id", guildID.String()).Msg("guild deleted")

	return nil
}

// CreateChannel registers a channel. It starts without overwrites.
func (e *Engine) CreateChannel(ctx context.Context, guildID uuid.UUID, in ChannelInput) (ch *models.Channel, err error) {
	done := e.track("create_channel")
	defer func() { done(err) }()

	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}

	ch = &models.Channel{ID: in.ID, GuildID: guildID, Name: strings.TrimSpace(in.Name)}

	err = e.write(ctx, guildID, func(tx *gorm.DB) ([]audit.Event, error) {
		if _, err := guild.Get(tx, guildID); err != nil {
			return nil, err
		}

		return nil, guild.CreateChannel(tx, ch)
	})
	if err != nil {
		return nil, err
	}

	return ch, nil
}

// DeleteChannel removes a channel and its overwrites.
func (e *Engine) DeleteChannel(ctx context.Context, channelID uuid.UUID) (err error) {
	done := e.track("delete_channel")
	defer func() { done(err) }()

	ch, err := e.channel(channelID)
	if err != nil {
		return err
	}

	return e.write(ctx, ch.GuildID, func(tx *gorm.DB) ([]audit.Event, error) {
		return nil, guild.DeleteChannel(tx, ch.ID)
	})
}

// AddMember records that a user joined a guild. Members hold the default role implicitly.
func (e *Engine) AddMember(ctx context.Context, guildID, userID uuid.UUID) (err error) {
	done := e.track("add_member")
	defer func() { done(err) }()

	if userID == uuid.Nil {
		return fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}

	return e.write(ctx, guildID, func(tx *gorm.DB) ([]audit.Event, error) {
		if _, err := guild.Get(tx, guildID); err != nil {
			return nil, err
		}

		return nil, guild.AddMember(tx, guildID, userID)
	})
}

// RemoveMember records that a user left a guild, dropping their role assignments and their
// member overwrites. The owner cannot leave.
func (e *Engine) RemoveMember(ctx context.Context, guildID, userID uuid.UUID) (err error) {
	done := e.track("remove_member")
	defer func() { done(err) }()

	return e.write(ctx, guildID, func(tx *gorm.DB) ([]audit.Event, error) {
		g, err := guild.Get(tx, guildID)
		if err != nil {
			return nil, err
		}

		if g.OwnerID == userID {
			return nil, fmt.Errorf("%w: the owner cannot leave guild %s", ErrInvalidInput, guildID)
		}

		return nil, guild.RemoveMember(tx, guildID, userID)
	})
}
