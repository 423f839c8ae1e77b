package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a sink logging through logger at info level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	e := s.logger.Info().
		Str("event_id", event.ID.String()).
		Str("kind", string(event.Kind)).
		Str("actor", event.Actor.String()).
		Str("guild_id", event.GuildID.String()).
		Str("target_id", event.TargetID.String()).
		Time("at", event.At)

	if event.Subject != "" {
		e = e.Str("subject", event.Subject)
	}

	if event.Before != nil {
		e = e.Interface("before", event.Before)
	}

	if event.After != nil {
		e = e.Interface("after", event.After)
	}

	if event.Cascade != nil {
		e = e.Int("cascade_users", len(event.Cascade.UserIDs)).
			Int("cascade_channels", len(event.Cascade.ChannelIDs))
	}

	e.Msg("permission mutation")
}
