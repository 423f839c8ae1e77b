package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/db/controller/guild"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/resolver"
)

// editor is the authority of a requester inside one guild, taken from a snapshot loaded in the
// mutation's transaction.
type editor struct {
	id      uuid.UUID
	owner   bool
	base    permission.Permissions
	highest int
}

// loadEditor reads the requester's guild-scope permissions and highest role position.
// A requester outside the guild holds nothing.
func loadEditor(tx *gorm.DB, guildID, userID uuid.UUID) (*resolver.Snapshot, editor, error) {
	snap, err := guild.LoadSnapshot(tx, guildID, []uuid.UUID{userID}, nil)
	if err != nil {
		return nil, editor{}, err
	}

	ed := editor{id: userID, owner: userID == snap.OwnerID}

	ed.base, err = snap.Base(userID)
	if errors.Is(err, resolver.ErrInvalidResolveRequest) {
		return snap, ed, fmt.Errorf("%w: %s is not a member of guild %s", ErrPermissionDenied, userID, guildID)
	}

	if err != nil {
		return nil, editor{}, err
	}

	ed.highest, err = snap.HighestPosition(userID)
	if err != nil {
		return nil, editor{}, err
	}

	return snap, ed, nil
}

// require checks the editor holds flag at guild scope.
func (ed editor) require(flag permission.Permissions) error {
	if ed.base.Contains(flag) {
		return nil
	}

	return fmt.Errorf("%w: %s lacks %s", ErrPermissionDenied, ed.id, flag)
}

// outranks checks the editor may manage a role at position. The owner outranks every role.
func (ed editor) outranks(position int) error {
	if ed.owner || ed.highest > position {
		return nil
	}

	return fmt.Errorf("%w: highest position %d does not exceed %d", ErrPermissionDenied, ed.highest, position)
}

// ceiling checks every flag in touched is held by the editor at guild scope: nobody grants,
// denies or revokes a flag they do not hold themselves.
func (ed editor) ceiling(touched permission.Permissions) error {
	if missing := touched.Subtract(ed.base); !missing.IsEmpty() {
		return fmt.Errorf("%w: %s does not hold %s", ErrInvalidPermissions, ed.id, missing)
	}

	return nil
}

// checkDefaultMask rejects dangerous flags on the default role.
func checkDefaultMask(perms permission.Permissions) error {
	if d := perms.Intersect(permission.Dangerous); !d.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrDangerousPermissionOnDefault, d)
	}

	return nil
}
