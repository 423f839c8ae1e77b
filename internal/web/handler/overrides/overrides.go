// Package overrides serves channel permission overwrites.
package overrides

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/engine"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/resolver"
	"github.com/voxguild/permengine/internal/web/handler"
	authmiddleware "github.com/voxguild/permengine/internal/web/middleware/auth"
)

const (
	// ListPath lists the overwrites of a channel.
	ListPath = "/channels/:channelID/overrides"
	// SubjectPath sets or clears one overwrite. kind is role or member.
	SubjectPath = ListPath + "/:kind/:subjectID"
)

// Service is the overwrite handler service.
type Service struct {
	handler.Service
	eng       *engine.Engine
	validator *handler.XValidator
}

// Handler is the overwrite handler.
var Handler = Service{} //nolint:gochecknoglobals

// SetRequest is the delta merged into an overwrite. A flag may appear in one list only.
type SetRequest struct {
	Allow   []string `json:"allow"   validate:"dive,permflag"`
	Deny    []string `json:"deny"    validate:"dive,permflag"`
	Inherit []string `json:"inherit" validate:"dive,permflag"`
}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, eng *engine.Engine) error {
	if app == nil || cfg == nil || eng == nil {
		return errors.New(handler.ErrNilACEFatalLogMsg)
	}

	s.eng = eng
	s.validator = handler.NewValidator()

	app.Get(handler.APIPrefix+ListPath, s.List)
	app.Put(handler.APIPrefix+SubjectPath, s.Set)
	app.Delete(handler.APIPrefix+SubjectPath, s.Clear)

	return nil
}

// List returns the overwrites of a channel, role subjects first. The caller must belong to the
// channel's guild.
func (s *Service) List(c fiber.Ctx) error {
	channelID, err := handler.UUIDParam(c, "channelID")
	if err != nil {
		return err
	}

	if err = s.eng.RequireChannelMember(c.Context(), channelID, authmiddleware.UserID(c)); err != nil {
		return err
	}

	rows, err := s.eng.GetOverrides(c.Context(), channelID)
	if err != nil {
		return err
	}

	return handler.Success(c, fiber.StatusOK, handler.NewOverwrites(rows))
}

// Set merges the delta. The response data is null when the overwrite became empty.
func (s *Service) Set(c fiber.Ctx) error {
	channelID, subject, err := params(c)
	if err != nil {
		return err
	}

	var req SetRequest
	if err = s.validator.Bind(c, &req); err != nil {
		return err
	}

	var delta engine.OverrideDelta

	for _, f := range []struct {
		names []string
		mask  *permission.Permissions
	}{
		{req.Allow, &delta.Allow},
		{req.Deny, &delta.Deny},
		{req.Inherit, &delta.Inherit},
	} {
		if *f.mask, err = permission.FromNames(f.names); err != nil {
			return err
		}
	}

	ow, err := s.eng.SetOverride(c.Context(), channelID, subject, delta, authmiddleware.UserID(c))
	if err != nil {
		return err
	}

	if ow == nil {
		return handler.Success(c, fiber.StatusOK, nil)
	}

	return handler.Success(c, fiber.StatusOK, handler.NewOverwrite(ow))
}

// Clear removes an overwrite.
func (s *Service) Clear(c fiber.Ctx) error {
	channelID, subject, err := params(c)
	if err != nil {
		return err
	}

	if err = s.eng.ClearOverride(c.Context(), channelID, subject, authmiddleware.UserID(c)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func params(c fiber.Ctx) (uuid.UUID, resolver.Subject, error) {
	channelID, err := handler.UUIDParam(c, "channelID")
	if err != nil {
		return uuid.Nil, resolver.Subject{}, err
	}

	kind, err := resolver.ParseSubjectKind(c.Params("kind"))
	if err != nil {
		return uuid.Nil, resolver.Subject{}, handler.NewAPIError(fiber.StatusBadRequest, handler.ErrCodeInvalidID, err.Error())
	}

	id, err := handler.UUIDParam(c, "subjectID")
	if err != nil {
		return uuid.Nil, resolver.Subject{}, err
	}

	return channelID, resolver.Subject{Kind: kind, ID: id}, nil
}
