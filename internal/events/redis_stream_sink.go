// Copyright 2025 James Ross
package events

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStreamSink mirrors job events onto a Redis stream via XADD, for
// operators who want a durable, externally-consumable event log alongside
// the in-process Bus. Off by default; wiring one up is opt-in, grounded on
// the teacher's storage-backends Redis streams writer but trimmed to a
// single best-effort sink with no consumer-group or ack machinery.
type RedisStreamSink struct {
	client     redis.Cmdable
	streamName string
	maxLen     int64
	log        *zap.Logger
}

// NewRedisStreamSink builds a sink that writes to streamName, trimmed
// approximately to maxLen entries (0 disables trimming).
func NewRedisStreamSink(client redis.Cmdable, streamName string, maxLen int64, log *zap.Logger) *RedisStreamSink {
	return &RedisStreamSink{client: client, streamName: streamName, maxLen: maxLen, log: log}
}

// Run drains ch, writing every event to the stream, until ch closes or ctx
// is cancelled. Intended to be started as its own goroutine against a
// channel returned by Bus.SubscribeJobs.
func (s *RedisStreamSink) Run(ctx context.Context, ch <-chan JobEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			s.write(ctx, evt)
		}
	}
}

func (s *RedisStreamSink) write(ctx context.Context, evt JobEvent) {
	args := &redis.XAddArgs{
		Stream: s.streamName,
		ID:     "*",
		Values: map[string]interface{}{
			"type":           string(evt.Type),
			"job_id":         evt.JobID.String(),
			"kind":           string(evt.Kind),
			"library_id":     evt.LibraryID,
			"correlation_id": evt.CorrelationID.String(),
			"attempt":        evt.Attempt,
			"timestamp":      evt.Timestamp.Unix(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if _, err := s.client.XAdd(ctx, args).Result(); err != nil {
		s.log.Warn("event stream sink write failed", zap.Error(err))
	}
}
