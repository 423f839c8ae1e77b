package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/voxguild/permengine/internal/db/controller/guild"
	"github.com/voxguild/permengine/internal/db/controller/overwrite"
	"github.com/voxguild/permengine/internal/db/controller/role"
	"github.com/voxguild/permengine/internal/metrics"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/resolver"
)

var (
	// ErrPermissionDenied is returned when the requester lacks the flag or the role position
	// a mutation needs.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidPermissions is returned for masks with undefined bits, conflicting deltas and
	// grants beyond the requester's own guild permissions.
	ErrInvalidPermissions = errors.New("invalid permissions")
	// ErrDangerousPermissionOnDefault is returned when a dangerous flag is set on the default role.
	ErrDangerousPermissionOnDefault = errors.New("dangerous permission on the default role")
	// ErrCannotDeleteDefaultRole is returned when deleting the default role.
	ErrCannotDeleteDefaultRole = errors.New("the default role cannot be deleted")
	// ErrDefaultRoleImplicit is returned when unassigning the default role.
	ErrDefaultRoleImplicit = errors.New("the default role is held implicitly by every member")
	// ErrInvalidInput is returned for malformed names, positions and ids.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable wraps every storage failure that is not a domain error. Callers may
	// retry with backoff.
	ErrStoreUnavailable = errors.New("permission store unavailable")
	// ErrDBNil is returned when the engine is built without a database.
	ErrDBNil = errors.New("database connection is nil")

	// ErrInvalidResolveRequest is returned when resolving for a non-member or a foreign channel.
	ErrInvalidResolveRequest = resolver.ErrInvalidResolveRequest
	// ErrRoleNotFound is returned when a role does not exist in the guild.
	ErrRoleNotFound = role.ErrRoleNotFound
	// ErrGuildNotFound is returned when a guild does not exist.
	ErrGuildNotFound = guild.ErrGuildNotFound
	// ErrGuildExists is returned when a guild id is registered twice.
	ErrGuildExists = guild.ErrGuildExists
	// ErrChannelNotFound is returned when a channel does not exist.
	ErrChannelNotFound = guild.ErrChannelNotFound
	// ErrChannelExists is returned when a channel id is registered twice.
	ErrChannelExists = guild.ErrChannelExists
	// ErrNotMember is returned when the target user is not a member of the guild.
	ErrNotMember = guild.ErrNotMember
	// ErrCorruptState is returned when stored data breaks an invariant.
	ErrCorruptState = guild.ErrCorruptState
)

// domainErrors pass through unchanged; anything else from storage becomes ErrStoreUnavailable.
var domainErrors = []error{
	ErrPermissionDenied,
	ErrInvalidPermissions,
	ErrDangerousPermissionOnDefault,
	ErrCannotDeleteDefaultRole,
	ErrDefaultRoleImplicit,
	ErrInvalidInput,
	ErrInvalidResolveRequest,
	ErrRoleNotFound,
	ErrGuildNotFound,
	ErrGuildExists,
	ErrChannelNotFound,
	ErrChannelExists,
	ErrNotMember,
	ErrCorruptState,
	context.Canceled,
	context.DeadlineExceeded,
}

// storeError classifies err. Missing default roles are corruption, other unknown errors mean
// the store could not serve the request.
func storeError(err error) error {
	if err == nil {
		return nil
	}

	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}

	if errors.Is(err, role.ErrDefaultRoleMissing) {
		return fmt.Errorf("%w: %w", ErrCorruptState, err)
	}

	log.Warn().Err(err).Msg("permission store failure")

	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// invalid wraps a validation failure of a mask or delta as ErrInvalidPermissions.
func invalid(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, permission.ErrUnknownBits) || errors.Is(err, overwrite.ErrConflictingDelta) {
		return fmt.Errorf("%w: %w", ErrInvalidPermissions, err)
	}

	return err
}

// result maps an operation error to its metrics label.
func result(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrPermissionDenied):
		return metrics.ResultDenied
	case errors.Is(err, ErrRoleNotFound),
		errors.Is(err, ErrGuildNotFound),
		errors.Is(err, ErrChannelNotFound),
		errors.Is(err, ErrNotMember):
		return metrics.ResultNotFound
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrCorruptState),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return metrics.ResultError
	default:
		return metrics.ResultInvalid
	}
}
