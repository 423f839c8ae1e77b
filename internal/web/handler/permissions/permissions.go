// Package permissions answers "what may this user do here".
package permissions

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/engine"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/web/handler"
	authmiddleware "github.com/voxguild/permengine/internal/web/middleware/auth"
)

const (
	// ChannelPath resolves channel scope.
	ChannelPath = "/channels/:channelID/permissions/:userID"
	// GuildPath resolves guild scope.
	GuildPath = "/guilds/:guildID/permissions/:userID"
)

// Service is the resolve handler service.
type Service struct {
	handler.Service
	eng *engine.Engine
}

// Handler is the resolve handler.
var Handler = Service{} //nolint:gochecknoglobals

// Resolved is the response body. Allowed is set when the request named flags with ?check=.
type Resolved struct {
	UserID      uuid.UUID             `json:"user_id"`
	ChannelID   *uuid.UUID            `json:"channel_id,omitempty"`
	GuildID     *uuid.UUID            `json:"guild_id,omitempty"`
	Permissions handler.PermissionSet `json:"permissions"`
	Allowed     *bool                 `json:"allowed,omitempty"`
}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, eng *engine.Engine) error {
	if app == nil || cfg == nil || eng == nil {
		return errors.New(handler.ErrNilACEFatalLogMsg)
	}

	s.eng = eng

	app.Get(handler.APIPrefix+ChannelPath, s.Channel)
	app.Get(handler.APIPrefix+GuildPath, s.Guild)

	return nil
}

// Channel resolves the effective permissions of a user in a channel. Callers outside the
// channel's guild are refused.
func (s *Service) Channel(c fiber.Ctx) error {
	channelID, err := handler.UUIDParam(c, "channelID")
	if err != nil {
		return err
	}

	userID, err := handler.UserParam(c, "userID")
	if err != nil {
		return err
	}

	if err = s.eng.RequireChannelMember(c.Context(), channelID, authmiddleware.UserID(c)); err != nil {
		return err
	}

	perms, err := s.eng.Resolve(c.Context(), userID, channelID)
	if err != nil {
		return err
	}

	return s.respond(c, Resolved{UserID: userID, ChannelID: &channelID}, perms)
}

// Guild resolves the guild scope permissions of a user.
func (s *Service) Guild(c fiber.Ctx) error {
	guildID, err := handler.UUIDParam(c, "guildID")
	if err != nil {
		return err
	}

	userID, err := handler.UserParam(c, "userID")
	if err != nil {
		return err
	}

	if err = s.eng.RequireMember(c.Context(), guildID, authmiddleware.UserID(c)); err != nil {
		return err
	}

	perms, err := s.eng.ResolveGuild(c.Context(), guildID, userID)
	if err != nil {
		return err
	}

	return s.respond(c, Resolved{UserID: userID, GuildID: &guildID}, perms)
}

func (s *Service) respond(c fiber.Ctx, out Resolved, perms permission.Permissions) error {
	out.Permissions = handler.NewPermissionSet(perms)

	if check := c.Query("check"); check != "" {
		required, err := permission.FromNames(strings.FieldsFunc(check, func(r rune) bool { return r == ',' }))
		if err != nil {
			return err
		}

		allowed := perms.Contains(required)
		out.Allowed = &allowed
	}

	return handler.Success(c, fiber.StatusOK, out)
}
