package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxguild/permengine/internal/audit"
	"github.com/voxguild/permengine/internal/permission"
	"github.com/voxguild/permengine/internal/resolver"
)

func TestSetOverrideMergesDeltas(t *testing.T) {
	f := newFixture(t)
	m, _ := f.addMember(t, permission.None)
	subject := resolver.MemberSubject(m)
	f.sink.Reset()

	ow, err := f.eng.SetOverride(f.ctx, f.channel, subject, OverrideDelta{Deny: permission.SendMessages | permission.Speak}, f.owner)
	require.NoError(t, err)
	require.NotNil(t, ow)
	assert.Equal(t, permission.SendMessages|permission.Speak, ow.Deny)

	ow, err = f.eng.SetOverride(f.ctx, f.channel, subject, OverrideDelta{Allow: permission.SendMessages}, f.owner)
	require.NoError(t, err)
	assert.Equal(t, permission.SendMessages, ow.Allow)
	assert.Equal(t, permission.Speak, ow.Deny)

	ow, err = f.eng.SetOverride(f.ctx, f.channel, subject, OverrideDelta{Allow: permission.SendMessages}, f.owner)
	require.NoError(t, err)
	assert.Equal(t, permission.SendMessages, ow.Allow)

	ow, err = f.eng.SetOverride(f.ctx, f.channel, subject, OverrideDelta{Inherit: permission.SendMessages | permission.Speak}, f.owner)
	require.NoError(t, err)
	assert.Nil(t, ow, "an overwrite left empty is removed")

	rows, err := f.eng.GetOverrides(f.ctx, f.channel)
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.Equal(t, []audit.Kind{audit.OverrideSet, audit.OverrideSet, audit.OverrideSet}, f.kinds(),
		"a delta that changes nothing is not audited")

	events := f.sink.Events()
	assert.Nil(t, events[0].Before)
	assert.Equal(t, &audit.Masks{Allow: permission.SendMessages, Deny: permission.Speak}, events[1].After)
	assert.Nil(t, events[2].After)
	assert.Equal(t, f.channel, events[2].TargetID)
	assert.Equal(t, subject.String(), events[2].Subject)
}

func TestSetOverrideKeepsMasksDisjoint(t *testing.T) {
	f := newFixture(t)
	r := f.createRole(t, "r", permission.None)
	subject := resolver.RoleSubject(r.ID)
	rng := rand.New(rand.NewPCG(3, 4))

	for range 200 {
		allow := permission.Permissions(rng.Uint64()) & permission.All
		deny := permission.Permissions(rng.Uint64()) & permission.All &^ allow
		inherit := permission.Permissions(rng.Uint64()) & permission.All &^ (allow | deny)

		ow, err := f.eng.SetOverride(f.ctx, f.channel, subject, OverrideDelta{Allow: allow, Deny: deny, Inherit: inherit}, f.owner)
		require.NoError(t, err)

		if ow != nil {
			require.False(t, ow.Allow.ContainsAny(ow.Deny))
			require.False(t, ow.Allow.IsEmpty() && ow.Deny.IsEmpty())
		}
	}
}

func TestSetOverrideAuthority(t *testing.T) {
	f := newFixture(t)
	target := f.createRole(t, "target", permission.None)
	editor, editorRole := f.addMember(t, permission.ManageChannels|permission.SendMessages)
	high := f.createRole(t, "high", permission.None)
	plain, _ := f.addMember(t, permission.SendMessages)
	f.sink.Reset()

	testCases := []struct {
		name          string
		channelID     uuid.UUID
		subject       resolver.Subject
		delta         OverrideDelta
		requestedBy   uuid.UUID
		expectedError error
	}{
		{
			name:          "missing manage channels",
			subject:       resolver.MemberSubject(plain),
			delta:         OverrideDelta{Deny: permission.SendMessages},
			requestedBy:   plain,
			expectedError: ErrPermissionDenied,
		},
		{
			name:          "role at the editor's position",
			subject:       resolver.RoleSubject(editorRole.ID),
			delta:         OverrideDelta{Deny: permission.SendMessages},
			requestedBy:   editor,
			expectedError: ErrPermissionDenied,
		},
		{
			name:          "role above the editor",
			subject:       resolver.RoleSubject(high.ID),
			delta:         OverrideDelta{Deny: permission.SendMessages},
			requestedBy:   editor,
			expectedError: ErrPermissionDenied,
		},
		{
			name:          "deny a flag the editor lacks",
			subject:       resolver.RoleSubject(target.ID),
			delta:         OverrideDelta{Deny: permission.BanMembers},
			requestedBy:   editor,
			expectedError: ErrInvalidPermissions,
		},
		{
			name:          "inherit a flag the editor lacks",
			subject:       resolver.MemberSubject(plain),
			delta:         OverrideDelta{Inherit: permission.KickMembers},
			requestedBy:   editor,
			expectedError: ErrInvalidPermissions,
		},
		{
			name:          "conflicting delta",
			subject:       resolver.MemberSubject(plain),
			delta:         OverrideDelta{Allow: permission.SendMessages, Deny: permission.SendMessages},
			requestedBy:   f.owner,
			expectedError: ErrInvalidPermissions,
		},
		{
			name:          "unknown role",
			subject:       resolver.RoleSubject(uuid.New()),
			delta:         OverrideDelta{Deny: permission.SendMessages},
			requestedBy:   f.owner,
			expectedError: ErrRoleNotFound,
		},
		{
			name:          "not a member",
			subject:       resolver.MemberSubject(uuid.New()),
			delta:         OverrideDelta{Deny: permission.SendMessages},
			requestedBy:   f.owner,
			expectedError: ErrNotMember,
		},
		{
			name:          "unknown channel",
			channelID:     uuid.New(),
			subject:       resolver.MemberSubject(plain),
			delta:         OverrideDelta{Deny: permission.SendMessages},
			requestedBy:   f.owner,
			expectedError: ErrChannelNotFound,
		},
		{
			name:        "role below the editor",
			subject:     resolver.RoleSubject(target.ID),
			delta:       OverrideDelta{Deny: permission.SendMessages},
			requestedBy: editor,
		},
		{
			name:        "flag held through the default role",
			subject:     resolver.MemberSubject(plain),
			delta:       OverrideDelta{Deny: permission.Speak},
			requestedBy: editor,
		},
		{
			name:        "member overwrite within the ceiling",
			subject:     resolver.MemberSubject(plain),
			delta:       OverrideDelta{Allow: permission.SendMessages},
			requestedBy: editor,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			channelID := tc.channelID
			if channelID == uuid.Nil {
				channelID = f.channel
			}

			ow, err := f.eng.SetOverride(f.ctx, channelID, tc.subject, tc.delta, tc.requestedBy)

			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, ow)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, ow)
		})
	}

	assert.Equal(t, []audit.Kind{audit.OverrideSet, audit.OverrideSet, audit.OverrideSet}, f.kinds())

	rows, err := f.eng.GetOverrides(f.ctx, f.channel)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, r := range rows {
		assert.False(t, r.Deny.ContainsAny(permission.KickMembers|permission.BanMembers))
	}
}

func TestClearOverride(t *testing.T) {
	f := newFixture(t)
	m, _ := f.addMember(t, permission.None)
	subject := resolver.MemberSubject(m)

	_, err := f.eng.SetOverride(f.ctx, f.channel, subject, OverrideDelta{Deny: permission.Speak}, f.owner)
	require.NoError(t, err)
	f.sink.Reset()

	require.ErrorIs(t, f.eng.ClearOverride(f.ctx, f.channel, subject, m), ErrPermissionDenied)

	require.NoError(t, f.eng.ClearOverride(f.ctx, f.channel, subject, f.owner))
	require.NoError(t, f.eng.ClearOverride(f.ctx, f.channel, subject, f.owner), "clearing twice is a no-op")

	rows, err := f.eng.GetOverrides(f.ctx, f.channel)
	require.NoError(t, err)
	assert.Empty(t, rows)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.OverrideCleared, events[0].Kind)
	assert.Equal(t, &audit.Masks{Deny: permission.Speak}, events[0].Before)

	require.ErrorIs(t, f.eng.ClearOverride(f.ctx, uuid.New(), subject, f.owner), ErrChannelNotFound)
}

func TestGetOverridesOrder(t *testing.T) {
	f := newFixture(t)
	m1, _ := f.addMember(t, permission.None)
	m2, _ := f.addMember(t, permission.None)
	r := f.createRole(t, "r", permission.None)

	for _, s := range []resolver.Subject{
		resolver.MemberSubject(m1),
		resolver.RoleSubject(r.ID),
		resolver.MemberSubject(m2),
		resolver.RoleSubject(f.def.ID),
	} {
		_, err := f.eng.SetOverride(f.ctx, f.channel, s, OverrideDelta{Deny: permission.Speak}, f.owner)
		require.NoError(t, err)
	}

	rows, err := f.eng.GetOverrides(f.ctx, f.channel)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "role", rows[0].SubjectKind)
	assert.Equal(t, "role", rows[1].SubjectKind)
	assert.Equal(t, "member", rows[2].SubjectKind)
	assert.Equal(t, "member", rows[3].SubjectKind)
	assert.Less(t, rows[0].SubjectID.String(), rows[1].SubjectID.String())
	assert.Less(t, rows[2].SubjectID.String(), rows[3].SubjectID.String())

	_, err = f.eng.GetOverrides(f.ctx, uuid.New())
	require.ErrorIs(t, err, ErrChannelNotFound)
}
