// Package lifecycle receives guild, channel and membership notifications from the guild service.
package lifecycle

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/engine"
	"github.com/voxguild/permengine/internal/web/handler"
	authmiddleware "github.com/voxguild/permengine/internal/web/middleware/auth"
)

// Paths below handler.InternalPrefix.
const (
	GuildsPath   = "/guilds"
	GuildPath    = GuildsPath + "/:guildID"
	ChannelsPath = GuildPath + "/channels"
	ChannelPath  = "/channels/:channelID"
	MemberPath   = GuildPath + "/members/:userID"
)

// Service is the lifecycle handler service.
type Service struct {
	handler.Service
	eng       *engine.Engine
	validator *handler.XValidator
}

// Handler is the lifecycle handler.
var Handler = Service{} //nolint:gochecknoglobals

// GuildRequest announces a guild. Without id one is generated.
type GuildRequest struct {
	ID      string `json:"id"       validate:"omitempty,uuid"`
	Name    string `json:"name"     validate:"max=100"`
	OwnerID string `json:"owner_id" validate:"required,uuid"`
}

// ChannelRequest announces a channel. Without id one is generated.
type ChannelRequest struct {
	ID   string `json:"id"   validate:"omitempty,uuid"`
	Name string `json:"name" validate:"max=100"`
}

// GuildCreated is the response of a guild announcement.
type GuildCreated struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	DefaultRole handler.Role `json:"default_role"`
}

// ChannelCreated is the response of a channel announcement.
type ChannelCreated struct {
	ID      uuid.UUID `json:"id"`
	GuildID uuid.UUID `json:"guild_id"`
	Name    string    `json:"name"`
}

// Init registers the routes behind the service token. Without a configured token they are not served.
func (s *Service) Init(app *fiber.App, cfg *config.Config, eng *engine.Engine) error {
	if app == nil || cfg == nil || eng == nil {
		return errors.New(handler.ErrNilACEFatalLogMsg)
	}

	if cfg.Auth.ServiceToken == "" {
		return nil
	}

	s.eng = eng
	s.validator = handler.NewValidator()

	internal := app.Group(handler.InternalPrefix, authmiddleware.ServiceToken(cfg.Auth.ServiceToken))
	internal.Post(GuildsPath, s.CreateGuild)
	internal.Delete(GuildPath, s.DeleteGuild)
	internal.Post(ChannelsPath, s.CreateChannel)
	internal.Delete(ChannelPath, s.DeleteChannel)
	internal.Put(MemberPath, s.AddMember)
	internal.Delete(MemberPath, s.RemoveMember)

	return nil
}

// CreateGuild registers a guild with its default role and owner.
func (s *Service) CreateGuild(c fiber.Ctx) error {
	var req GuildRequest
	if err := s.validator.Bind(c, &req); err != nil {
		return err
	}

	g, def, err := s.eng.CreateGuild(c.Context(), engine.GuildInput{
		ID:      optionalID(req.ID),
		Name:    req.Name,
		OwnerID: uuid.MustParse(req.OwnerID),
	})
	if err != nil {
		return err
	}

	return handler.Success(c, fiber.StatusCreated, GuildCreated{
		ID:          g.ID,
		Name:        g.Name,
		OwnerID:     g.OwnerID,
		DefaultRole: handler.NewRole(def),
	})
}

// DeleteGuild removes a guild and everything in it.
func (s *Service) DeleteGuild(c fiber.Ctx) error {
	guildID, err := handler.UUIDParam(c, "guildID")
	if err != nil {
		return err
	}

	if err = s.eng.DeleteGuild(c.Context(), guildID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CreateChannel registers a channel.
func (s *Service) CreateChannel(c fiber.Ctx) error {
	guildID, err := handler.UUIDParam(c, "guildID")
	if err != nil {
		return err
	}

	var req ChannelRequest
	if err = s.validator.Bind(c, &req); err != nil {
		return err
	}

	ch, err := s.eng.CreateChannel(c.Context(), guildID, engine.ChannelInput{ID: optionalID(req.ID), Name: req.Name})
	if err != nil {
		return err
	}

	return handler.Success(c, fiber.StatusCreated, ChannelCreated{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name})
}

// DeleteChannel removes a channel and its overwrites.
func (s *Service) DeleteChannel(c fiber.Ctx) error {
	channelID, err := handler.UUIDParam(c, "channelID")
	if err != nil {
		return err
	}

	if err = s.eng.DeleteChannel(c.Context(), channelID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// AddMember records a membership.
func (s *Service) AddMember(c fiber.Ctx) error {
	guildID, userID, err := member(c)
	if err != nil {
		return err
	}

	if err = s.eng.AddMember(c.Context(), guildID, userID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveMember drops a membership with its assignments and member overwrites.
func (s *Service) RemoveMember(c fiber.Ctx) error {
	guildID, userID, err := member(c)
	if err != nil {
		return err
	}

	if err = s.eng.RemoveMember(c.Context(), guildID, userID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func member(c fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	guildID, err := handler.UUIDParam(c, "guildID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	userID, err := handler.UUIDParam(c, "userID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	return guildID, userID, nil
}

// optionalID parses a validated, possibly empty uuid.
func optionalID(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}

	return uuid.MustParse(s)
}
