package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/audit"
	"github.com/voxguild/permengine/internal/db/controller/guild"
	"github.com/voxguild/permengine/internal/db/controller/overwrite"
	"github.com/voxguild/permengine/internal/db/controller/role"
	"github.com/voxguild/permengine/internal/db/models"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/resolver"
)

// OverrideDelta changes a channel overwrite: flags in Allow become allowed, flags in Deny
// become denied, flags in Inherit fall back to the guild level.
type OverrideDelta = overwrite.Delta

// SetOverride merges delta into the overwrite of subject on a channel. It returns the stored
// overwrite, or nil when the merge left it empty and it was removed.
func (e *Engine) SetOverride(
	ctx context.Context,
	channelID uuid.UUID,
	subject resolver.Subject,
	delta OverrideDelta,
	requestedBy uuid.UUID,
) (stored *models.PermissionOverwrite, err error) {
	done := e.track("set_override")
	defer func() { done(err) }()

	if err = delta.Validate(); err != nil {
		return nil, invalid(err)
	}

	ch, err := e.channel(channelID)
	if err != nil {
		return nil, err
	}

	err = e.write(ctx, ch.GuildID, func(tx *gorm.DB) ([]audit.Event, error) {
		ed, err := e.authorizeOverride(tx, ch, subject, requestedBy)
		if err != nil {
			return nil, err
		}

		if err = ed.ceiling(delta.Touched()); err != nil {
			return nil, err
		}

		before, after, err := overwrite.Apply(tx, ch.GuildID, ch.ID, subject, delta)
		if err != nil {
			return nil, invalid(err)
		}

		stored = after

		if sameMasks(before, after) {
			return nil, nil
		}

		return []audit.Event{{
			Kind:     audit.OverrideSet,
			Actor:    requestedBy,
			GuildID:  ch.GuildID,
			TargetID: ch.ID,
			Subject:  subject.String(),
			Before:   overwriteMasks(before),
			After:    overwriteMasks(after),
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// ClearOverride removes the overwrite of subject on a channel. Clearing an absent overwrite
// succeeds and changes nothing.
func (e *Engine) ClearOverride(ctx context.Context, channelID uuid.UUID, subject resolver.Subject, requestedBy uuid.UUID) (err error) {
	done := e.track("clear_override")
	defer func() { done(err) }()

	ch, err := e.channel(channelID)
	if err != nil {
		return err
	}

	return e.write(ctx, ch.GuildID, func(tx *gorm.DB) ([]audit.Event, error) {
		if _, err := e.authorizeOverride(tx, ch, subject, requestedBy); err != nil {
			return nil, err
		}

		before, err := overwrite.Get(tx, ch.ID, subject)
		if err != nil || before == nil {
			return nil, err
		}

		if _, err = overwrite.Delete(tx, ch.ID, subject); err != nil {
			return nil, err
		}

		return []audit.Event{{
			Kind:     audit.OverrideCleared,
			Actor:    requestedBy,
			GuildID:  ch.GuildID,
			TargetID: ch.ID,
			Subject:  subject.String(),
			Before:   overwriteMasks(before),
		}}, nil
	})
}

// GetOverrides returns the overwrites of a channel, role overwrites first, then by subject id.
func (e *Engine) GetOverrides(ctx context.Context, channelID uuid.UUID) (rows []models.PermissionOverwrite, err error) {
	done := e.track("get_overrides")
	defer func() { done(err) }()

	ch, err := e.channel(channelID)
	if err != nil {
		return nil, err
	}

	err = e.read(ctx, ch.GuildID, func(tx *gorm.DB) error {
		if _, err := guild.GetChannel(tx, ch.ID); err != nil {
			return err
		}

		rows, err = overwrite.ListByChannel(tx, ch.ID)
		if err != nil {
			return err
		}

		for i := range rows {
			if _, err := overwrite.ToResolver(&rows[i]); err != nil {
				return fmt.Errorf("%w: %w", ErrCorruptState, err)
			}
		}

		return nil
	})

	return rows, err
}

// authorizeOverride checks the requester may edit overwrites of subject on ch and that the
// subject exists in the channel's guild.
func (e *Engine) authorizeOverride(tx *gorm.DB, ch *models.Channel, subject resolver.Subject, requestedBy uuid.UUID) (editor, error) {
	if _, err := guild.GetChannel(tx, ch.ID); err != nil {
		return editor{}, err
	}

	_, ed, err := loadEditor(tx, ch.GuildID, requestedBy)
	if err != nil {
		return editor{}, err
	}

	if err = ed.require(permission.ManageChannels); err != nil {
		return editor{}, err
	}

	switch subject.Kind {
	case resolver.SubjectRole:
		r, err := role.GetInGuild(tx, ch.GuildID, subject.ID)
		if err != nil {
			return editor{}, err
		}

		if err = ed.outranks(r.Position); err != nil {
			return editor{}, err
		}
	case resolver.SubjectMember:
		ok, err := guild.IsMember(tx, ch.GuildID, subject.ID)
		if err != nil {
			return editor{}, err
		}

		if !ok {
			return editor{}, fmt.Errorf("%w: %s", ErrNotMember, subject.ID)
		}
	default:
		return editor{}, fmt.Errorf("%w: %w", ErrInvalidInput, resolver.ErrUnknownSubjectKind)
	}

	return ed, nil
}

// channel finds a channel outside the guild lock. Channels never move between guilds; the
// locked section checks the channel still exists.
func (e *Engine) channel(channelID uuid.UUID) (*models.Channel, error) {
	ch, err := guild.GetChannel(e.db, channelID)
	if err != nil {
		return nil, storeError(err)
	}

	return ch, nil
}

func overwriteMasks(ow *models.PermissionOverwrite) *audit.Masks {
	if ow == nil {
		return nil
	}

	return &audit.Masks{Allow: ow.Allow, Deny: ow.Deny}
}

func sameMasks(a, b *models.PermissionOverwrite) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Allow == b.Allow && a.Deny == b.Deny
}
