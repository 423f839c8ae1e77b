package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voxguild/permengine/internal/engine"
	accesslog "github.com/voxguild/permengine/internal/logger/adapter/fiber"
	"github.com/voxguild/permengine/internal/permission"
	authmiddleware "github.com/voxguild/permengine/internal/web/middleware/auth"
)

// ErrCode is a stable, machine readable error identifier.
type ErrCode string

// Error codes returned in ErrorBody.Code.
const (
	ErrCodeTokenRequired       ErrCode = "TOKEN_REQUIRED"
	ErrCodeTokenInvalid        ErrCode = "TOKEN_INVALID"
	ErrCodePermissionDenied    ErrCode = "PERMISSION_DENIED"
	ErrCodeInvalidPermissions  ErrCode = "INVALID_PERMISSIONS"
	ErrCodeDangerousOnDefault  ErrCode = "DANGEROUS_PERMISSION_ON_DEFAULT"
	ErrCodeDefaultRoleImplicit ErrCode = "DEFAULT_ROLE_IMPLICIT"
	ErrCodeCannotDeleteDefault ErrCode = "CANNOT_DELETE_DEFAULT_ROLE"
	ErrCodeValidation          ErrCode = "VALIDATION_ERROR"
	ErrCodeInvalidPayload      ErrCode = "INVALID_PAYLOAD"
	ErrCodeInvalidID           ErrCode = "INVALID_ID"
	ErrCodeNotFound            ErrCode = "NOT_FOUND"
	ErrCodeConflict            ErrCode = "CONFLICT"
	ErrCodeUnavailable         ErrCode = "STORE_UNAVAILABLE"
	ErrCodeInternal            ErrCode = "INTERNAL_ERROR"
)

// Response is the JSON envelope of every API answer.
type Response struct {
	Data     any        `json:"data"`
	Error    *ErrorBody `json:"error,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Metadata carries request tracing data.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// APIError is an error with its HTTP status and code.
type APIError struct {
	Status  int
	Code    ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string { return e.Message }

// NewAPIError returns an APIError.
func NewAPIError(status int, code ErrCode, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// Success writes data with status.
func Success(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Response{Data: data, Metadata: metadata(c)})
}

// RequestID sets the X-Request-ID header and local, keeping an incoming id.
func RequestID(c fiber.Ctx) error {
	id := c.Get(fiber.HeaderXRequestID)
	if id == "" {
		id = uuid.NewString()
	}

	c.Locals(accesslog.LocalsRequestID, id)
	c.Set(fiber.HeaderXRequestID, id)

	return c.Next()
}

func metadata(c fiber.Ctx) Metadata {
	id, _ := c.Locals(accesslog.LocalsRequestID).(string)

	return Metadata{RequestID: id, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// Classify maps err to its API form.
func Classify(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, authmiddleware.ErrTokenRequired):
		return NewAPIError(fiber.StatusUnauthorized, ErrCodeTokenRequired, err.Error())
	case errors.Is(err, authmiddleware.ErrTokenInvalid):
		return NewAPIError(fiber.StatusUnauthorized, ErrCodeTokenInvalid, err.Error())
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := ErrCodeInternal

		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			code = ErrCodeNotFound
		case fiberErr.Code < fiber.StatusInternalServerError:
			code = ErrCodeInvalidPayload
		}

		return NewAPIError(fiberErr.Code, code, fiberErr.Message)
	}

	switch {
	case errors.Is(err, engine.ErrPermissionDenied):
		return NewAPIError(fiber.StatusForbidden, ErrCodePermissionDenied, err.Error())
	case errors.Is(err, engine.ErrDangerousPermissionOnDefault):
		return NewAPIError(fiber.StatusUnprocessableEntity, ErrCodeDangerousOnDefault, err.Error())
	case errors.Is(err, engine.ErrInvalidPermissions), errors.Is(err, permission.ErrUnknownName):
		return NewAPIError(fiber.StatusUnprocessableEntity, ErrCodeInvalidPermissions, err.Error())
	case errors.Is(err, engine.ErrDefaultRoleImplicit):
		return NewAPIError(fiber.StatusUnprocessableEntity, ErrCodeDefaultRoleImplicit, err.Error())
	case errors.Is(err, engine.ErrInvalidInput):
		return NewAPIError(fiber.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, engine.ErrCannotDeleteDefaultRole):
		return NewAPIError(fiber.StatusConflict, ErrCodeCannotDeleteDefault, err.Error())
	case errors.Is(err, engine.ErrGuildExists), errors.Is(err, engine.ErrChannelExists):
		return NewAPIError(fiber.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, engine.ErrRoleNotFound),
		errors.Is(err, engine.ErrNotMember),
		errors.Is(err, engine.ErrGuildNotFound),
		errors.Is(err, engine.ErrChannelNotFound),
		errors.Is(err, engine.ErrInvalidResolveRequest):
		return NewAPIError(fiber.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, engine.ErrStoreUnavailable):
		return NewAPIError(fiber.StatusServiceUnavailable, ErrCodeUnavailable, "permission store unavailable, retry later")
	default:
		return NewAPIError(fiber.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}

// ErrorHandler renders every chain error as Response.
func ErrorHandler(c fiber.Ctx, err error) error {
	apiErr := Classify(err)

	if apiErr.Status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(apiErr.Status).JSON(Response{
		Error:    &ErrorBody{Code: apiErr.Code, Message: apiErr.Message, Fields: apiErr.Fields},
		Metadata: metadata(c),
	})
}
