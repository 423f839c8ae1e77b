// Package engine is the mutation guard of the permission engine. Every role and overwrite write
// goes through it: it checks the requester's authority, serializes writers per guild, runs the
// read-modify-write in one transaction and emits one audit event once the write is committed.
// Permission queries load a consistent guild snapshot under the guild's read lock and hand it
// to the resolver.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/audit"
	"github.com/voxguild/permengine/internal/metrics"
)

// Engine guards and serves guild permission state.
type Engine struct {
	db      *gorm.DB
	locks   *lockTable
	sink    audit.Sink
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuditSink sets where audit events go. The default drops them.
func WithAuditSink(s audit.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock overrides the clock stamping audit events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New returns an engine over db.
func New(db *gorm.DB, opts ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	e := &Engine{
		db:    db,
		locks: newLockTable(),
		sink:  audit.NoOpSink{},
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// write runs fn under the guild's write lock inside one transaction. Once the lock is held the
// transaction is no longer bound to ctx: it commits or rolls back as a whole. Events returned
// by fn are emitted after commit.
func (e *Engine) write(ctx context.Context, guildID uuid.UUID, fn func(tx *gorm.DB) ([]audit.Event, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := e.locks.Lock(guildID)
	defer unlock()

	e.metrics.SetLocks(e.locks.Len())

	var events []audit.Event

	err := e.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		var err error
		events, err = fn(tx)

		return err
	})
	if err != nil {
		return e.report(storeError(err))
	}

	for i := range events {
		e.emit(ctx, events[i])
	}

	return nil
}

// read runs fn under the guild's read lock inside one transaction.
func (e *Engine) read(ctx context.Context, guildID uuid.UUID, fn func(tx *gorm.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := e.locks.RLock(guildID)
	defer unlock()

	if err := e.db.WithContext(ctx).Transaction(fn); err != nil {
		return e.report(storeError(err))
	}

	return nil
}

// report logs errors that signal a caller bug or broken data.
func (e *Engine) report(err error) error {
	switch {
	case errors.Is(err, ErrCorruptState):
		log.Error().Err(err).Msg("corrupt permission state")
	case errors.Is(err, ErrInvalidResolveRequest):
		log.Error().Err(err).Msg("invalid resolve request")
	}

	return err
}

func (e *Engine) emit(ctx context.Context, ev audit.Event) {
	ev.ID = uuid.New()
	ev.At = e.now().UTC()

	e.sink.Emit(context.WithoutCancel(ctx), ev)

	log.Debug().
		Str("kind", string(ev.Kind)).
		Str("guild_id", ev.GuildID.String()).
		Str("target_id", ev.TargetID.String()).
		Str("actor", ev.Actor.String()).
		Msg("permission mutation committed")
}

// track starts metrics for op; call the returned function with the final error.
func (e *Engine) track(op string) func(error) {
	t := e.metrics.Track(op)

	return func(err error) {
		t.End(result(err))
	}
}
