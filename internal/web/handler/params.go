package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	authmiddleware "github.com/voxguild/permengine/internal/web/middleware/auth"
)

// UUIDParam parses the named route parameter.
func UUIDParam(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, NewAPIError(fiber.StatusBadRequest, ErrCodeInvalidID, "invalid "+name)
	}

	return id, nil
}

// UserParam is UUIDParam that also accepts Me for the authenticated caller.
func UserParam(c fiber.Ctx, name string) (uuid.UUID, error) {
	if c.Params(name) == Me {
		return authmiddleware.UserID(c), nil
	}

	return UUIDParam(c, name)
}
