package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/db/controller/guild"
	"github.com/voxguild/permengine/internal/permission"
)

// Resolve returns the effective permissions of a user in a channel. A channel that does not
// exist and a user outside the channel's guild are reported as ErrInvalidResolveRequest.
func (e *Engine) Resolve(ctx context.Context, userID, channelID uuid.UUID) (perms permission.Permissions, err error) {
	done := e.track("resolve")
	defer func() { done(err) }()

	ch, err := e.channel(channelID)
	if errors.Is(err, ErrChannelNotFound) {
		return 0, e.report(fmt.Errorf("%w: %w", ErrInvalidResolveRequest, err))
	}

	if err != nil {
		return 0, err
	}

	err = e.read(ctx, ch.GuildID, func(tx *gorm.DB) error {
		snap, err := guild.LoadSnapshot(tx, ch.GuildID, []uuid.UUID{userID}, []uuid.UUID{ch.ID})
		if err != nil {
			return resolveLoadError(err)
		}

		perms, err = snap.Resolve(userID, ch.ID)

		return err
	})
	if err != nil {
		return 0, err
	}

	return perms, nil
}

// Can reports whether a user holds every flag of required in a channel.
func (e *Engine) Can(ctx context.Context, userID, channelID uuid.UUID, required permission.Permissions) (bool, error) {
	perms, err := e.Resolve(ctx, userID, channelID)
	if err != nil {
		return false, err
	}

	return perms.Contains(required), nil
}

// ResolveGuild returns the guild-scope permissions of a user, before any channel overwrite.
func (e *Engine) ResolveGuild(ctx context.Context, guildID, userID uuid.UUID) (perms permission.Permissions, err error) {
	done := e.track("resolve_guild")
	defer func() { done(err) }()

	err = e.read(ctx, guildID, func(tx *gorm.DB) error {
		snap, err := guild.LoadSnapshot(tx, guildID, []uuid.UUID{userID}, nil)
		if err != nil {
			return resolveLoadError(err)
		}

		perms, err = snap.Base(userID)

		return err
	})
	if err != nil {
		return 0, err
	}

	return perms, nil
}

// resolveLoadError turns a guild that disappeared under the query into a caller error.
func resolveLoadError(err error) error {
	if errors.Is(err, ErrGuildNotFound) {
		return fmt.Errorf("%w: %w", ErrInvalidResolveRequest, err)
	}

	return err
}

// RequireMember returns ErrPermissionDenied unless userID belongs to the guild.
func (e *Engine) RequireMember(ctx context.Context, guildID, userID uuid.UUID) (err error) {
	done := e.track("require_member")
	defer func() { done(err) }()

	return e.read(ctx, guildID, func(tx *gorm.DB) error {
		return requireMember(tx, guildID, userID)
	})
}

// RequireChannelMember returns ErrPermissionDenied unless userID belongs to the guild that owns
// the channel.
func (e *Engine) RequireChannelMember(ctx context.Context, channelID, userID uuid.UUID) (err error) {
	done := e.track("require_member")
	defer func() { done(err) }()

	ch, err := e.channel(channelID)
	if err != nil {
		return err
	}

	return e.read(ctx, ch.GuildID, func(tx *gorm.DB) error {
		if _, err := guild.GetChannel(tx, ch.ID); err != nil {
			return err
		}

		return requireMember(tx, ch.GuildID, userID)
	})
}

func requireMember(tx *gorm.DB, guildID, userID uuid.UUID) error {
	if _, err := guild.Get(tx, guildID); err != nil {
		return err
	}

	ok, err := guild.IsMember(tx, guildID, userID)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s is not a member of guild %s", ErrPermissionDenied, userID, guildID)
	}

	return nil
}
