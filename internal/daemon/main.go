// Package daemon wires the store, audit pipeline, engine and web service into one process.
package daemon

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/voxguild/permengine/internal/audit"
	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/db"
	"github.com/voxguild/permengine/internal/engine"
	"github.com/voxguild/permengine/internal/metrics"
	"github.com/voxguild/permengine/internal/web"
)

// ErrNilConfig is returned by New without a config.
var ErrNilConfig = errors.New("config is nil")

// Daemon represents the main application daemon.
type Daemon struct {
	web        *web.Service
	engine     *engine.Engine
	db         *gorm.DB
	dispatcher *audit.Dispatcher
	redis      *redis.Client
}

// New opens and migrates the database, starts the audit dispatcher and builds the web service.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	d := &Daemon{}

	var err error

	d.db, err = db.Open(cfg.DB, cfg.Log.SQL)
	if err != nil {
		return nil, err
	}

	if err = db.Migrate(d.db); err != nil {
		d.Close()

		return nil, err
	}

	sink, err := d.auditSink(ctx, cfg.Audit)
	if err != nil {
		d.Close()

		return nil, err
	}

	d.dispatcher = audit.NewDispatcher(audit.Config{
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	d.engine, err = engine.New(d.db,
		engine.WithAuditSink(d.dispatcher),
		engine.WithMetrics(metrics.New(nil)),
	)
	if err != nil {
		d.Close()

		return nil, err
	}

	d.web, err = web.New(cfg, d.engine, nil)
	if err != nil {
		d.Close()

		return nil, err
	}

	return d, nil
}

func (d *Daemon) auditSink(ctx context.Context, cfg config.Audit) (audit.Sink, error) {
	var sinks audit.MultiSink

	if cfg.LogEvents {
		sinks = append(sinks, audit.NewLogSink(log.Logger.With().Str("component", "audit").Logger()))
	}

	if cfg.Redis.Enabled {
		client, err := audit.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}

		d.redis = client
		sinks = append(sinks, audit.NewRedisSink(client, cfg.Redis.Stream, cfg.Redis.MaxLen))
	}

	if len(sinks) == 0 {
		log.Warn().Msg("audit events are discarded, enable audit.logEvents or audit.redis")

		return audit.NoOpSink{}, nil
	}

	return sinks, nil
}

// Engine returns the permission engine.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// Run serves HTTP until ctx is done, then drains and stops the web service.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	stopped := make(chan struct{})

	g.Go(func() error {
		defer close(stopped)

		return d.web.Start()
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			d.web.Shutdown()
		case <-stopped:
		}

		return nil
	})

	return g.Wait()
}

// Close flushes pending audit events and releases the store and redis connections.
func (d *Daemon) Close() {
	if d.dispatcher != nil {
		d.dispatcher.Close()

		if dropped := d.dispatcher.Dropped(); dropped > 0 {
			log.Warn().Uint64("dropped", dropped).Msg("audit events dropped")
		}
	}

	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Error().Err(err).Msg("closing redis")
		}
	}

	if d.db != nil {
		if err := db.Close(d.db); err != nil {
			log.Error().Err(err).Msg("closing database")
		}
	}
}
