// Package resolver computes effective permissions for a guild member in a channel.
//
// The resolver is pure: it takes already-loaded guild state and performs no I/O and no
// locking. Callers obtain a consistent Snapshot (see the guild controller) and ask it.
//
// Layering, from lowest to highest priority:
//
//  1. guild owner: everything, nothing else is consulted
//  2. base grant: union of every held role, the default role included
//  3. Administrator in the base grant: everything, channel overwrites are skipped
//  4. the default role's channel overwrite (deny, then allow)
//  5. the other held roles' channel overwrites, combined (deny, then allow)
//  6. the member's own channel overwrite (deny, then allow)
package resolver

import (
	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/permission"
)

// Role is the resolver's view of a guild role.
type Role struct {
	ID          uuid.UUID
	Position    int
	Permissions permission.Permissions
	IsDefault   bool
}

// Overwrite is the resolver's view of a channel permission overwrite.
type Overwrite struct {
	Subject Subject
	Allow   permission.Permissions
	Deny    permission.Permissions
}

// Input is everything needed to resolve one member in one channel.
type Input struct {
	UserID        uuid.UUID
	IsOwner       bool
	DefaultRoleID uuid.UUID
	// Roles held by the member, the default role included.
	Roles []Role
	// Overwrites of the channel. Overwrites for roles the member does not hold are ignored.
	Overwrites []Overwrite
}

// Base returns the guild-scope grant of a member: steps 1 to 3.
func Base(isOwner bool, roles []Role) permission.Permissions {
	if isOwner {
		return permission.All
	}

	var base permission.Permissions
	for _, r := range roles {
		base = base.Union(r.Permissions)
	}

	if base.Contains(permission.Administrator) {
		return permission.All
	}

	return base
}

// Compute returns the effective permissions described by in.
func Compute(in Input) permission.Permissions {
	perms := Base(in.IsOwner, in.Roles)
	if perms.Contains(permission.Administrator) {
		return permission.All
	}

	held := make(map[uuid.UUID]struct{}, len(in.Roles))
	for _, r := range in.Roles {
		held[r.ID] = struct{}{}
	}

	var (
		everyone, member    *Overwrite
		roleAllow, roleDeny permission.Permissions
	)

	for i := range in.Overwrites {
		ow := &in.Overwrites[i]

		switch {
		case ow.Subject.Kind == SubjectMember && ow.Subject.ID == in.UserID:
			member = ow
		case ow.Subject.Kind == SubjectRole && ow.Subject.ID == in.DefaultRoleID:
			everyone = ow
		case ow.Subject.Kind == SubjectRole:
			if _, ok := held[ow.Subject.ID]; ok {
				roleAllow = roleAllow.Union(ow.Allow)
				roleDeny = roleDeny.Union(ow.Deny)
			}
		}
	}

	if everyone != nil {
		perms = perms.Subtract(everyone.Deny).Union(everyone.Allow)
	}

	perms = perms.Subtract(roleDeny).Union(roleAllow)

	if member != nil {
		perms = perms.Subtract(member.Deny).Union(member.Allow)
	}

	return perms
}
