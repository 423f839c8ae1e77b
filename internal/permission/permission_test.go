package permission

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsArePowersOfTwo(t *testing.T) {
	seen := Permissions(0)

	for _, f := range Flags() {
		assert.Equal(t, 1, bits.OnesCount64(uint64(f.Value)), f.Name)
		assert.False(t, seen.ContainsAny(f.Value), "duplicate bit for %s", f.Name)
		seen |= f.Value
	}

	assert.Equal(t, All, seen)
}

func TestSetPrimitives(t *testing.T) {
	a := SendMessages | CreateInvite
	b := SendMessages | ManageMessages

	assert.Equal(t, SendMessages|CreateInvite|ManageMessages, a.Union(b))
	assert.Equal(t, SendMessages, a.Intersect(b))
	assert.Equal(t, CreateInvite, a.Subtract(b))
	assert.True(t, a.Contains(SendMessages))
	assert.True(t, a.Contains(None))
	assert.False(t, a.Contains(SendMessages|ManageMessages))
	assert.True(t, a.ContainsAny(SendMessages|ManageMessages))
	assert.True(t, None.IsEmpty())
	assert.False(t, a.IsEmpty())
	assert.Equal(t, 2, a.Count())
}

func TestDangerousAndDefaults(t *testing.T) {
	assert.True(t, All.Contains(Dangerous))
	assert.False(t, DefaultEveryone.ContainsAny(Dangerous))

	for _, f := range []Permissions{BanMembers, KickMembers, ManageServer, ManageRoles, ManageMessages, ManageChannels} {
		assert.True(t, Dangerous.Contains(f), f.String())
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, All.Validate())
	require.NoError(t, None.Validate())

	err := (SendMessages | 1<<40).Validate()
	require.ErrorIs(t, err, ErrUnknownBits)
}

func TestParse(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		want    Permissions
		wantErr bool
	}{
		{"upper snake", "SEND_MESSAGES", SendMessages, false},
		{"ui label", "Manage Roles", ManageRoles, false},
		{"kebab", "ban-members", BanMembers, false},
		{"unknown", "FLY", 0, true},
		{"empty", "", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrUnknownName)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNamesAndString(t *testing.T) {
	p, err := FromNames([]string{"Send Messages", "CREATE_INVITE"})
	require.NoError(t, err)

	assert.Equal(t, []string{"CREATE_INVITE", "SEND_MESSAGES"}, p.Names())
	assert.Equal(t, "CREATE_INVITE|SEND_MESSAGES", p.String())
	assert.Equal(t, "NONE", None.String())
	assert.Equal(t, "SEND_MESSAGES|0x10000000000", (SendMessages | 1<<40).String())

	_, err = FromNames([]string{"SEND_MESSAGES", "nope"})
	require.ErrorIs(t, err, ErrUnknownName)
}
