package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxguild/permengine/internal/audit"
	"github.com/voxguild/permengine/internal/db/controller/role"
	"github.com/voxguild/permengine/internal/permission"
)

func ptr[T any](v T) *T { return &v }

func TestCreateRole(t *testing.T) {
	f := newFixture(t)
	editor, editorRole := f.addMember(t, permission.ManageRoles|permission.SendMessages)
	plain, plainRole := f.addMember(t, permission.SendMessages)
	f.sink.Reset()

	require.Greater(t, plainRole.Position, editorRole.Position)

	testCases := []struct {
		name          string
		input         RoleInput
		requestedBy   uuid.UUID
		expectedError error
	}{
		{
			name:          "missing manage roles",
			input:         RoleInput{Name: "x", Permissions: permission.SendMessages},
			requestedBy:   plain,
			expectedError: ErrPermissionDenied,
		},
		{
			name:          "not a member",
			input:         RoleInput{Name: "x"},
			requestedBy:   uuid.New(),
			expectedError: ErrPermissionDenied,
		},
		{
			name:          "grant beyond own permissions",
			input:         RoleInput{Name: "x", Permissions: permission.SendMessages | permission.KickMembers},
			requestedBy:   editor,
			expectedError: ErrInvalidPermissions,
		},
		{
			name:          "undefined bits",
			input:         RoleInput{Name: "x", Permissions: 1 << 40},
			requestedBy:   f.owner,
			expectedError: ErrInvalidPermissions,
		},
		{
			name:          "empty name",
			input:         RoleInput{Name: "   "},
			requestedBy:   f.owner,
			expectedError: ErrInvalidInput,
		},
		{
			name:        "grant within own permissions",
			input:       RoleInput{Name: " Talkers ", Color: 0xff0000, Permissions: permission.SendMessages},
			requestedBy: editor,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := f.eng.CreateRole(f.ctx, f.guildID, tc.input, tc.requestedBy)

			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, r)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Talkers", r.Name)
			assert.Equal(t, plainRole.Position+1, r.Position, "new roles rank above every existing role")
			assert.False(t, r.IsDefault)
		})
	}

	events := f.sink.Events()
	require.Len(t, events, 1, "only the successful create is audited")
	assert.Equal(t, audit.RoleCreated, events[0].Kind)
	assert.Equal(t, editor, events[0].Actor)
	assert.Equal(t, f.guildID, events[0].GuildID)
	require.NotNil(t, events[0].After)
	assert.Equal(t, permission.SendMessages, events[0].After.Permissions)
	assert.NotEqual(t, uuid.Nil, events[0].ID)

	_, err := f.eng.CreateRole(f.ctx, uuid.New(), RoleInput{Name: "x"}, f.owner)
	require.ErrorIs(t, err, ErrGuildNotFound)
}

func TestUpdateRoleAuthority(t *testing.T) {
	f := newFixture(t)
	target := f.createRole(t, "target", permission.KickMembers)
	editor, editorRole := f.addMember(t, permission.ManageRoles|permission.SendMessages)
	f.sink.Reset()

	// Editor outranks target but not their own role.
	_, err := f.eng.UpdateRole(f.ctx, editorRole.ID, RolePatch{Name: ptr("mine")}, editor)
	require.ErrorIs(t, err, ErrPermissionDenied)

	r, err := f.eng.UpdateRole(f.ctx, target.ID, RolePatch{Name: ptr("renamed"), Color: ptr(uint32(7))}, editor)
	require.NoError(t, err)
	assert.Equal(t, "renamed", r.Name)
	assert.Equal(t, uint32(7), r.Color)

	// Adding a held flag is fine, removing or adding one the editor lacks is not.
	r, err = f.eng.UpdateRole(f.ctx, target.ID, RolePatch{Permissions: ptr(permission.KickMembers | permission.SendMessages)}, editor)
	require.NoError(t, err)
	assert.Equal(t, permission.KickMembers|permission.SendMessages, r.Permissions)

	// Flags held through the default role count toward the ceiling.
	r, err = f.eng.UpdateRole(f.ctx, target.ID, RolePatch{Permissions: ptr(permission.KickMembers | permission.SendMessages | permission.Speak)}, editor)
	require.NoError(t, err)
	assert.Equal(t, permission.KickMembers|permission.SendMessages|permission.Speak, r.Permissions)

	_, err = f.eng.UpdateRole(f.ctx, target.ID, RolePatch{Permissions: ptr(permission.SendMessages | permission.Speak)}, editor)
	require.ErrorIs(t, err, ErrInvalidPermissions)

	_, err = f.eng.UpdateRole(f.ctx, target.ID, RolePatch{Permissions: ptr(permission.KickMembers | permission.SendMessages | permission.Speak | permission.BanMembers)}, editor)
	require.ErrorIs(t, err, ErrInvalidPermissions)

	r, err = role.GetInGuild(f.db, f.guildID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, permission.KickMembers|permission.SendMessages|permission.Speak, r.Permissions, "rejected patches change nothing")

	_, err = f.eng.UpdateRole(f.ctx, target.ID, RolePatch{Permissions: ptr(permission.Permissions(1 << 33))}, f.owner)
	require.ErrorIs(t, err, ErrInvalidPermissions)

	// Positions.
	_, err = f.eng.UpdateRole(f.ctx, target.ID, RolePatch{Position: ptr(editorRole.Position)}, editor)
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.eng.UpdateRole(f.ctx, target.ID, RolePatch{Position: ptr(0)}, editor)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.eng.UpdateRole(f.ctx, f.def.ID, RolePatch{Position: ptr(3)}, f.owner)
	require.ErrorIs(t, err, ErrInvalidInput)

	r, err = f.eng.UpdateRole(f.ctx, editorRole.ID, RolePatch{Position: ptr(10)}, f.owner)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Position)

	_, err = f.eng.UpdateRole(f.ctx, uuid.New(), RolePatch{Name: ptr("x")}, f.owner)
	require.ErrorIs(t, err, ErrRoleNotFound)

	assert.Equal(t, []audit.Kind{audit.RoleUpdated, audit.RoleUpdated, audit.RoleUpdated, audit.RoleUpdated}, f.kinds())

	events := f.sink.Events()
	require.NotNil(t, events[1].Before)
	assert.Equal(t, permission.KickMembers, events[1].Before.Permissions)
	assert.Equal(t, permission.KickMembers|permission.SendMessages, events[1].After.Permissions)
}

func TestUpdateRoleWithoutChangesIsNotAudited(t *testing.T) {
	f := newFixture(t)
	r := f.createRole(t, "same", permission.Speak)
	f.sink.Reset()

	got, err := f.eng.UpdateRole(f.ctx, r.ID, RolePatch{Name: ptr("same"), Permissions: ptr(permission.Speak)}, f.owner)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Empty(t, f.sink.Events())
}

func TestDefaultRoleNeverHoldsDangerousFlags(t *testing.T) {
	f := newFixture(t)
	editor, _ := f.addMember(t, permission.All)
	rng := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		mask := permission.Permissions(rng.Uint64()) & permission.All
		requester := f.owner

		if rng.IntN(2) == 0 {
			requester = editor
		}

		_, err := f.eng.UpdateRole(f.ctx, f.def.ID, RolePatch{Permissions: &mask}, requester)
		if mask.ContainsAny(permission.Dangerous) {
			require.ErrorIs(t, err, ErrDangerousPermissionOnDefault)
		} else {
			require.NoError(t, err)
		}

		def, err := role.Default(f.db, f.guildID)
		require.NoError(t, err)
		require.False(t, def.Permissions.ContainsAny(permission.Dangerous))
	}

	for _, flag := range permission.Flags() {
		if !flag.Dangerous {
			continue
		}

		mask := permission.DefaultEveryone | flag.Value
		_, err := f.eng.UpdateRole(f.ctx, f.def.ID, RolePatch{Permissions: &mask}, f.owner)
		require.ErrorIs(t, err, ErrDangerousPermissionOnDefault, flag.Name)
	}
}

func TestDeleteRole(t *testing.T) {
	f := newFixture(t)
	low := f.createRole(t, "low", permission.None)
	editor, editorRole := f.addMember(t, permission.ManageRoles)
	high := f.createRole(t, "high", permission.None)
	f.sink.Reset()

	require.ErrorIs(t, f.eng.DeleteRole(f.ctx, f.def.ID, f.owner), ErrCannotDeleteDefaultRole)
	require.ErrorIs(t, f.eng.DeleteRole(f.ctx, high.ID, editor), ErrPermissionDenied)
	require.ErrorIs(t, f.eng.DeleteRole(f.ctx, editorRole.ID, editor), ErrPermissionDenied)
	require.NoError(t, f.eng.DeleteRole(f.ctx, low.ID, editor))
	require.ErrorIs(t, f.eng.DeleteRole(f.ctx, low.ID, editor), ErrRoleNotFound)

	roles, err := f.eng.ListRoles(f.ctx, f.guildID)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, high.ID, roles[0].ID)
	assert.Equal(t, editorRole.ID, roles[1].ID)
	assert.Equal(t, f.def.ID, roles[2].ID)

	assert.Equal(t, []audit.Kind{audit.RoleDeleted}, f.kinds())
}

func TestAssignUnassign(t *testing.T) {
	f := newFixture(t)
	target := f.createRole(t, "target", permission.Speak)
	editor, _ := f.addMember(t, permission.ManageRoles)
	high := f.createRole(t, "high", permission.None)
	m, _ := f.addMember(t, permission.None)
	f.sink.Reset()

	require.NoError(t, f.eng.AssignRole(f.ctx, f.guildID, m, target.ID, editor))
	require.NoError(t, f.eng.AssignRole(f.ctx, f.guildID, m, target.ID, editor), "assigning twice is a no-op")

	held, err := f.eng.MemberRoles(f.ctx, f.guildID, m)
	require.NoError(t, err)
	require.Len(t, held, 2)
	assert.Equal(t, target.ID, held[0].ID)
	assert.True(t, held[1].IsDefault)

	require.ErrorIs(t, f.eng.AssignRole(f.ctx, f.guildID, m, high.ID, editor), ErrPermissionDenied)
	require.ErrorIs(t, f.eng.AssignRole(f.ctx, f.guildID, m, target.ID, m), ErrPermissionDenied)
	require.ErrorIs(t, f.eng.AssignRole(f.ctx, f.guildID, uuid.New(), target.ID, editor), ErrNotMember)
	require.ErrorIs(t, f.eng.AssignRole(f.ctx, f.guildID, m, uuid.New(), editor), ErrRoleNotFound)

	require.NoError(t, f.eng.AssignRole(f.ctx, f.guildID, m, f.def.ID, editor), "the default role is held implicitly")
	require.ErrorIs(t, f.eng.UnassignRole(f.ctx, f.guildID, m, f.def.ID, editor), ErrDefaultRoleImplicit)

	require.NoError(t, f.eng.UnassignRole(f.ctx, f.guildID, m, target.ID, editor))
	require.NoError(t, f.eng.UnassignRole(f.ctx, f.guildID, m, target.ID, editor), "unassigning twice is a no-op")

	assert.Equal(t, []audit.Kind{audit.RoleAssigned, audit.RoleUnassigned}, f.kinds())

	events := f.sink.Events()
	assert.Equal(t, "member:"+m.String(), events[0].Subject)
	assert.Equal(t, target.ID, events[0].TargetID)

	_, err = f.eng.MemberRoles(f.ctx, f.guildID, uuid.New())
	require.ErrorIs(t, err, ErrNotMember)
}
