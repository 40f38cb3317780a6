// Package audit forwards business events to best-effort sinks. Recording
// never returns an error and never blocks the operation that produced it.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Event struct {
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	ActorRole string    `json:"actor_role"`
	Action    string    `json:"action"`
	Module    string    `json:"module"`
	Details   string    `json:"details"`
	At        time.Time `json:"at"`
}

type Sink interface {
	Record(ctx context.Context, e Event)
}

// LogSink writes events to the structured log.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("audit")}
}

func (s *LogSink) Record(_ context.Context, e Event) {
	s.log.Info(e.Action,
		zap.String("module", e.Module),
		zap.String("actor_id", e.ActorID),
		zap.String("actor_name", e.ActorName),
		zap.String("actor_role", e.ActorRole),
		zap.String("details", e.Details),
		zap.Time("at", e.At),
	)
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Record(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, e)
		}
	}
}
