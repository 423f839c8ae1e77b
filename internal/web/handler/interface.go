package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/engine"
)

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, cfg *config.Config, eng *engine.Engine) error
}
