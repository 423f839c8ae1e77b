// Package roles serves role management and assignment.
package roles

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/engine"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/web/handler"
	authmiddleware "github.com/voxguild/permengine/internal/web/middleware/auth"
)

const (
	// GuildRolesPath lists and creates roles.
	GuildRolesPath = "/guilds/:guildID/roles"
	// RolePath updates and deletes a role.
	RolePath = "/roles/:roleID"
	// MemberRolesPath lists the roles of a member.
	MemberRolesPath = "/guilds/:guildID/members/:userID/roles"
	// AssignmentPath assigns and unassigns a role.
	AssignmentPath = MemberRolesPath + "/:roleID"
)

// Service is the role handler service.
type Service struct {
	handler.Service
	eng       *engine.Engine
	validator *handler.XValidator
}

// Handler is the role handler.
var Handler = Service{} //nolint:gochecknoglobals

// CreateRequest is the body of a role creation.
type CreateRequest struct {
	Name        string   `json:"name"        validate:"required,max=100"`
	Color       uint32   `json:"color"       validate:"lte=16777215"`
	Permissions []string `json:"permissions" validate:"dive,permflag"`
}

// UpdateRequest is the body of a role update. Absent fields are kept.
type UpdateRequest struct {
	Name        *string   `json:"name"        validate:"omitempty,min=1,max=100"`
	Color       *uint32   `json:"color"       validate:"omitempty,lte=16777215"`
	Permissions *[]string `json:"permissions" validate:"omitempty,dive,permflag"`
	Position    *int      `json:"position"    validate:"omitempty,gte=0"`
}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, eng *engine.Engine) error {
	if app == nil || cfg == nil || eng == nil {
		return errors.New(handler.ErrNilACEFatalLogMsg)
	}

	s.eng = eng
	s.validator = handler.NewValidator()

	app.Get(handler.APIPrefix+GuildRolesPath, s.List)
	app.Post(handler.APIPrefix+GuildRolesPath, s.Create)
	app.Patch(handler.APIPrefix+RolePath, s.Update)
	app.Delete(handler.APIPrefix+RolePath, s.Delete)
	app.Get(handler.APIPrefix+MemberRolesPath, s.MemberRoles)
	app.Put(handler.APIPrefix+AssignmentPath, s.Assign)
	app.Delete(handler.APIPrefix+AssignmentPath, s.Unassign)

	return nil
}

// List returns the roles of a guild, highest first. Only members may list them.
func (s *Service) List(c fiber.Ctx) error {
	guildID, err := handler.UUIDParam(c, "guildID")
	if err != nil {
		return err
	}

	if err = s.eng.RequireMember(c.Context(), guildID, authmiddleware.UserID(c)); err != nil {
		return err
	}

	roles, err := s.eng.ListRoles(c.Context(), guildID)
	if err != nil {
		return err
	}

	return handler.Success(c, fiber.StatusOK, handler.NewRoles(roles))
}

// Create adds a role.
func (s *Service) Create(c fiber.Ctx) error {
	guildID, err := handler.UUIDParam(c, "guildID")
	if err != nil {
		return err
	}

	var req CreateRequest
	if err = s.validator.Bind(c, &req); err != nil {
		return err
	}

	perms, err := permission.FromNames(req.Permissions)
	if err != nil {
		return err
	}

	r, err := s.eng.CreateRole(c.Context(), guildID, engine.RoleInput{
		Name:        req.Name,
		Color:       req.Color,
		Permissions: perms,
	}, authmiddleware.UserID(c))
	if err != nil {
		return err
	}

	return handler.Success(c, fiber.StatusCreated, handler.NewRole(r))
}

// Update changes the sent attributes of a role.
func (s *Service) Update(c fiber.Ctx) error {
	roleID, err := handler.UUIDParam(c, "roleID")
	if err != nil {
		return err
	}

	var req UpdateRequest
	if err = s.validator.Bind(c, &req); err != nil {
		return err
	}

	patch := engine.RolePatch{Name: req.Name, Color: req.Color, Position: req.Position}

	if req.Permissions != nil {
		perms, err := permission.FromNames(*req.Permissions)
		if err != nil {
			return err
		}

		patch.Permissions = &perms
	}

	r, err := s.eng.UpdateRole(c.Context(), roleID, patch, authmiddleware.UserID(c))
	if err != nil {
		return err
	}

	return handler.Success(c, fiber.StatusOK, handler.NewRole(r))
}

// Delete removes a role.
func (s *Service) Delete(c fiber.Ctx) error {
	roleID, err := handler.UUIDParam(c, "roleID")
	if err != nil {
		return err
	}

	if err = s.eng.DeleteRole(c.Context(), roleID, authmiddleware.UserID(c)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// MemberRoles lists the roles a member holds, the default role included.
func (s *Service) MemberRoles(c fiber.Ctx) error {
	guildID, userID, err := memberParams(c)
	if err != nil {
		return err
	}

	if err = s.eng.RequireMember(c.Context(), guildID, authmiddleware.UserID(c)); err != nil {
		return err
	}

	roles, err := s.eng.MemberRoles(c.Context(), guildID, userID)
	if err != nil {
		return err
	}

	return handler.Success(c, fiber.StatusOK, handler.NewRoles(roles))
}

// Assign gives a member a role.
func (s *Service) Assign(c fiber.Ctx) error {
	return s.assignment(c, s.eng.AssignRole)
}

// Unassign takes a role from a member.
func (s *Service) Unassign(c fiber.Ctx) error {
	return s.assignment(c, s.eng.UnassignRole)
}

type assignFunc func(ctx context.Context, guildID, userID, roleID, requestedBy uuid.UUID) error

func (s *Service) assignment(c fiber.Ctx, op assignFunc) error {
	guildID, userID, err := memberParams(c)
	if err != nil {
		return err
	}

	roleID, err := handler.UUIDParam(c, "roleID")
	if err != nil {
		return err
	}

	if err = op(c.Context(), guildID, userID, roleID, authmiddleware.UserID(c)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func memberParams(c fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	guildID, err := handler.UUIDParam(c, "guildID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	userID, err := handler.UserParam(c, "userID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	return guildID, userID, nil
}
