package audit

import (
	"context"

	auth "github.com/messfeedback/go-auth"
	"github.com/messfeedback/go-auth/activitymap"
)

// LoggerSink writes every event as a structured log line.
type LoggerSink struct {
	logger auth.Logger
	opts   []activitymap.Option
}

var _ auth.ActivitySink = (*LoggerSink)(nil)

func NewLoggerSink(l auth.Logger, opts ...activitymap.Option) *LoggerSink {
	if l == nil {
		l = nopLogger{}
	}
	return &LoggerSink{logger: l, opts: opts}
}

func (s *LoggerSink) Record(_ context.Context, event auth.ActivityEvent) error {
	rec := activitymap.Normalize(event, s.opts...)

	args := []any{
		"event_type", rec.Verb,
		"identifier", rec.Identifier,
		"actor_id", rec.ActorID,
		"source_ip", rec.SourceIP,
		"occurred_at", rec.OccurredAt,
	}
	if rec.ObjectID != "" {
		args = append(args, "account_id", rec.ObjectID)
	}
	for k, v := range rec.Metadata {
		args = append(args, k, v)
	}

	switch event.EventType {
	case auth.ActivityEventLoginSuccess:
		s.logger.Info("security event", args...)
	default:
		s.logger.Warn("security event", args...)
	}
	return nil
}
