package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultStream is the stream key events are appended to when none is configured.
	DefaultStream = "permengine:audit"

	redisWriteTimeout = 2 * time.Second
)

// RedisSink appends events to a redis stream for the audit-log collaborator to consume.
// Each entry carries the kind, the guild and the JSON encoded event.
type RedisSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisSink returns a sink writing to stream. A positive maxLen trims the stream
// approximately to that many entries.
func NewRedisSink(client redis.UniversalClient, stream string, maxLen int64) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}

	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisClient parses url and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	if err = rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("audit redis connected")

	return rdb, nil
}

// Emit writes the event. Failures are logged; the mutation the event describes has already
// been committed.
func (s *RedisSink) Emit(ctx context.Context, event Event) {
	if err := s.Write(ctx, event); err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Str("kind", string(event.Kind)).
			Msg("failed to write audit event to redis")
	}
}

// Write appends the event to the stream.
func (s *RedisSink) Write(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, redisWriteTimeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"kind":     string(event.Kind),
			"guild_id": event.GuildID.String(),
			"event":    payload,
		},
	}

	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err = s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}

	return nil
}
