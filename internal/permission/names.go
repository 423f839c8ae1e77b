package permission

import (
	"fmt"
	"strings"
)

type namedFlag struct {
	flag  Permissions
	name  string
	label string
}

// flags lists every defined flag in bit order.
var flags = []namedFlag{ //nolint:gochecknoglobals
	{CreateInvite, "CREATE_INVITE", "Create Invite"},
	{KickMembers, "KICK_MEMBERS", "Kick Members"},
	{BanMembers, "BAN_MEMBERS", "Ban Members"},
	{Administrator, "ADMINISTRATOR", "Administrator"},
	{ManageChannels, "MANAGE_CHANNELS", "Manage Channels"},
	{ManageServer, "MANAGE_SERVER", "Manage Server"},
	{AddReactions, "ADD_REACTIONS", "Add Reactions"},
	{ViewChannel, "VIEW_CHANNEL", "View Channel"},
	{SendMessages, "SEND_MESSAGES", "Send Messages"},
	{EmbedLinks, "EMBED_LINKS", "Embed Links"},
	{AttachFiles, "ATTACH_FILES", "Attach Files"},
	{ReadMessageHistory, "READ_MESSAGE_HISTORY", "Read Message History"},
	{MentionEveryone, "MENTION_EVERYONE", "Mention Everyone"},
	{ManageMessages, "MANAGE_MESSAGES", "Manage Messages"},
	{Connect, "CONNECT", "Connect"},
	{Speak, "SPEAK", "Speak"},
	{MuteMembers, "MUTE_MEMBERS", "Mute Members"},
	{DeafenMembers, "DEAFEN_MEMBERS", "Deafen Members"},
	{MoveMembers, "MOVE_MEMBERS", "Move Members"},
	{Stream, "STREAM", "Stream"},
	{ManageRoles, "MANAGE_ROLES", "Manage Roles"},
	{TimeoutMembers, "TIMEOUT_MEMBERS", "Timeout Members"},
}

// Flag describes one capability for listings.
type Flag struct {
	Value     Permissions `json:"value"`
	Name      string      `json:"name"`
	Label     string      `json:"label"`
	Dangerous bool        `json:"dangerous"`
}

// Flags returns every defined flag in bit order.
func Flags() []Flag {
	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		out = append(out, Flag{
			Value:     f.flag,
			Name:      f.name,
			Label:     f.label,
			Dangerous: Dangerous.Contains(f.flag),
		})
	}

	return out
}

// Parse returns the flag with the given name. Matching ignores case, spaces and dashes,
// so "SEND_MESSAGES", "send-messages" and "Send Messages" are equivalent.
func Parse(name string) (Permissions, error) {
	key := normalize(name)
	for _, f := range flags {
		if f.name == key {
			return f.flag, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownName, name)
}

// FromNames returns the union of the named flags.
func FromNames(names []string) (Permissions, error) {
	var p Permissions

	for _, n := range names {
		f, err := Parse(n)
		if err != nil {
			return 0, err
		}

		p |= f
	}

	return p, nil
}

func normalize(name string) string {
	r := strings.NewReplacer(" ", "_", "-", "_")
	return strings.ToUpper(r.Replace(strings.TrimSpace(name)))
}
