// Package flags lists the permission flags.
package flags

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/engine"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/web/handler"
)

// Path is the flag listing below handler.APIPrefix.
const Path = "/permissions/flags"

// Service is the flag listing handler service.
type Service struct {
	handler.Service
}

// Handler is the flag listing handler.
var Handler = Service{} //nolint:gochecknoglobals

// Listing is the response body.
type Listing struct {
	Flags           []permission.Flag     `json:"flags"`
	All             handler.PermissionSet `json:"all"`
	Dangerous       handler.PermissionSet `json:"dangerous"`
	DefaultEveryone handler.PermissionSet `json:"default_everyone"`
}

// Init registers the route.
func (s *Service) Init(app *fiber.App, cfg *config.Config, eng *engine.Engine) error {
	if app == nil || cfg == nil || eng == nil {
		return errors.New(handler.ErrNilACEFatalLogMsg)
	}

	app.Get(handler.APIPrefix+Path, s.Get)

	return nil
}

// Get lists every flag in bit order.
func (s *Service) Get(c fiber.Ctx) error {
	return handler.Success(c, fiber.StatusOK, Listing{
		Flags:           permission.Flags(),
		All:             handler.NewPermissionSet(permission.All),
		Dangerous:       handler.NewPermissionSet(permission.Dangerous),
		DefaultEveryone: handler.NewPermissionSet(permission.DefaultEveryone),
	})
}
