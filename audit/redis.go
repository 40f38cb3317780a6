package audit

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStreamSink appends events to a Redis stream with XADD. Each write runs
// in its own goroutine under a short timeout; failures are logged and dropped.
type RedisStreamSink struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewRedisStreamSink(client *redis.Client, stream string, log *zap.Logger) *RedisStreamSink {
	return &RedisStreamSink{
		client:  client,
		stream:  stream,
		maxLen:  100000,
		timeout: 2 * time.Second,
		log:     log.Named("audit.redis"),
	}
}

func (s *RedisStreamSink) Record(_ context.Context, e Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The request context may already be cancelled by the time this runs.
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		err := s.client.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: true,
			Values: map[string]interface{}{
				"actor_id":   e.ActorID,
				"actor_name": e.ActorName,
				"actor_role": e.ActorRole,
				"action":     e.Action,
				"module":     e.Module,
				"details":    e.Details,
				"at":         e.At.Format(time.RFC3339Nano),
			},
		}).Err()
		if err != nil {
			s.log.Warn("audit event dropped", zap.String("action", e.Action), zap.Error(err))
		}
	}()
}

// Flush waits for in-flight writes; call it at shutdown.
func (s *RedisStreamSink) Flush() {
	s.wg.Wait()
}
