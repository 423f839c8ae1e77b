// Package audit defines the events emitted after every successful permission mutation and the
// sinks that forward them to the audit-log collaborator. Persisting events is not done here.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/permission"
)

// Kind names the mutation an event describes.
type Kind string

// Event kinds.
const (
	RoleCreated     Kind = "role_created"
	RoleUpdated     Kind = "role_updated"
	RoleDeleted     Kind = "role_deleted"
	RoleAssigned    Kind = "role_assigned"
	RoleUnassigned  Kind = "role_unassigned"
	OverrideSet     Kind = "override_set"
	OverrideCleared Kind = "override_cleared"
)

// Masks is the permission state of a role or an overwrite at one point in time.
// Roles fill Permissions, overwrites fill Allow and Deny.
type Masks struct {
	Permissions permission.Permissions `json:"permissions"`
	Allow       permission.Permissions `json:"allow"`
	Deny        permission.Permissions `json:"deny"`
}

// Cascade lists what a role deletion removed along with the role.
type Cascade struct {
	UserIDs    []uuid.UUID `json:"user_ids,omitempty"`
	ChannelIDs []uuid.UUID `json:"channel_ids,omitempty"`
}

// Event describes one successful mutation.
//
// TargetID is the role for role events and the channel for override events. Subject carries
// the member of an assignment or the subject of an overwrite, as "role:<id>" or "member:<id>".
type Event struct {
	ID       uuid.UUID `json:"id"`
	At       time.Time `json:"at"`
	Kind     Kind      `json:"kind"`
	Actor    uuid.UUID `json:"actor"`
	GuildID  uuid.UUID `json:"guild_id"`
	TargetID uuid.UUID `json:"target_id"`
	Subject  string    `json:"subject,omitempty"`
	Before   *Masks    `json:"before,omitempty"`
	After    *Masks    `json:"after,omitempty"`
	Cascade  *Cascade  `json:"cascade,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// MultiSink forwards every event to each of its sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}

// MemorySink keeps every event in memory. It is meant for tests and the check command.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)

	return out
}

// Reset drops the recorded events.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
}
