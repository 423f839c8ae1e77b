// Package permission defines the capability bitset used by guild roles and channel overwrites.
//
// Every capability is a single bit in a Permissions mask. Masks are combined with the usual
// set primitives (Union, Intersect, Subtract) which are pure single-word bitwise operations.
//
// Masks read back from storage must be checked with Validate: a mask carrying bits outside
// All is treated as corrupt data and reported, never silently trimmed.
package permission

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Permissions is a set of capabilities encoded as a bitmask.
type Permissions uint64

// Capability flags. The bit positions are part of the stored format and must never be reused.
const (
	// CreateInvite allows creating guild invites.
	CreateInvite Permissions = 1 << iota
	// KickMembers allows removing members from the guild.
	KickMembers
	// BanMembers allows banning members from the guild.
	BanMembers
	// Administrator grants every capability and bypasses channel overwrites.
	Administrator
	// ManageChannels allows editing channels and their permission overwrites.
	ManageChannels
	// ManageServer allows editing guild settings.
	ManageServer
	// AddReactions allows adding reactions to messages.
	AddReactions
	// ViewChannel allows seeing a channel.
	ViewChannel
	// SendMessages allows posting messages in text channels.
	SendMessages
	// EmbedLinks allows links to be rendered as embeds.
	EmbedLinks
	// AttachFiles allows uploading files.
	AttachFiles
	// ReadMessageHistory allows reading older messages.
	ReadMessageHistory
	// MentionEveryone allows mentioning @everyone.
	MentionEveryone
	// ManageMessages allows deleting and pinning other members' messages.
	ManageMessages
	// Connect allows joining voice channels.
	Connect
	// Speak allows talking in voice channels.
	Speak
	// MuteMembers allows server-muting members in voice.
	MuteMembers
	// DeafenMembers allows server-deafening members in voice.
	DeafenMembers
	// MoveMembers allows moving members between voice channels.
	MoveMembers
	// Stream allows screen sharing and video.
	Stream
	// ManageRoles allows creating, editing, assigning and deleting roles.
	ManageRoles
	// TimeoutMembers allows temporarily muting members guild-wide.
	TimeoutMembers

	// None is the empty set.
	None Permissions = 0
)

// All is the union of every defined flag.
const All = CreateInvite | KickMembers | BanMembers | Administrator | ManageChannels | ManageServer |
	AddReactions | ViewChannel | SendMessages | EmbedLinks | AttachFiles | ReadMessageHistory |
	MentionEveryone | ManageMessages | Connect | Speak | MuteMembers | DeafenMembers | MoveMembers |
	Stream | ManageRoles | TimeoutMembers

// Dangerous are the capabilities the default (@everyone) role can never hold.
const Dangerous = KickMembers | BanMembers | Administrator | ManageChannels | ManageServer |
	MentionEveryone | ManageMessages | MuteMembers | DeafenMembers | MoveMembers | ManageRoles |
	TimeoutMembers

// DefaultEveryone is the grant of a newly created guild's default role.
const DefaultEveryone = ViewChannel | SendMessages | ReadMessageHistory | AddReactions | EmbedLinks |
	AttachFiles | CreateInvite | Connect | Speak | Stream

// ErrUnknownBits is returned when a mask contains bits that are not defined flags.
var ErrUnknownBits = errors.New("permission mask contains undefined bits")

// ErrUnknownName is returned when a flag name cannot be parsed.
var ErrUnknownName = errors.New("unknown permission name")

// Union returns p ∪ o.
func (p Permissions) Union(o Permissions) Permissions { return p | o }

// Intersect returns p ∩ o.
func (p Permissions) Intersect(o Permissions) Permissions { return p & o }

// Subtract returns p \ o.
func (p Permissions) Subtract(o Permissions) Permissions { return p &^ o }

// Contains reports whether every bit of flag is set in p.
// Contains(None) is true.
func (p Permissions) Contains(flag Permissions) bool { return p&flag == flag }

// ContainsAny reports whether p shares at least one bit with o.
func (p Permissions) ContainsAny(o Permissions) bool { return p&o != 0 }

// IsEmpty reports whether no bit is set.
func (p Permissions) IsEmpty() bool { return p == 0 }

// Count returns the number of set flags.
func (p Permissions) Count() int { return bits.OnesCount64(uint64(p)) }

// Unknown returns the bits of p that are not defined flags.
func (p Permissions) Unknown() Permissions { return p &^ All }

// Validate returns ErrUnknownBits if p carries undefined bits.
func (p Permissions) Validate() error {
	if u := p.Unknown(); u != 0 {
		return fmt.Errorf("%w: %#x", ErrUnknownBits, uint64(u))
	}

	return nil
}

// Names returns the names of the set flags in bit order. Undefined bits are ignored.
func (p Permissions) Names() []string {
	names := make([]string, 0, p.Count())

	for _, f := range flags {
		if p.Contains(f.flag) {
			names = append(names, f.name)
		}
	}

	return names
}

// String implements fmt.Stringer.
func (p Permissions) String() string {
	if p == 0 {
		return "NONE"
	}

	s := strings.Join(p.Names(), "|")
	if u := p.Unknown(); u != 0 {
		if s != "" {
			s += "|"
		}

		s += fmt.Sprintf("%#x", uint64(u))
	}

	return s
}
