package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxHistoryLen bounds the per-channel event history kept in Redis.
const maxHistoryLen = 256

// StreamEvent is one entry of a channel's event history
type StreamEvent struct {
	Channel   string                 `json:"channel"`
	Event     map[string]interface{} `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
}

// Streams keeps a bounded per-channel event history in Redis Streams so the
// dashboard timeline and reconnecting clients can catch up on recent
// status and milestone events.
type Streams struct {
	rdb *redis.Client
	log *zap.Logger
	ctx context.Context
}

// NewStreams creates a new Streams manager
func NewStreams(rdb *redis.Client, log *zap.Logger) *Streams {
	return &Streams{
		rdb: rdb,
		log: log,
		ctx: context.Background(),
	}
}

// Append records an event in the channel's history stream, trimming to the
// configured bound.
func (s *Streams) Append(channel string, event map[string]interface{}) error {
	entry := map[string]interface{}{
		"channel":   channel,
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = s.rdb.XAdd(s.ctx, &redis.XAddArgs{
		Stream: "history:" + channel,
		MaxLen: maxHistoryLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}
	return nil
}

// History returns up to limit most recent events for a channel, oldest first.
func (s *Streams) History(channel string, limit int64) ([]StreamEvent, error) {
	msgs, err := s.rdb.XRevRangeN(s.ctx, "history:"+channel, "+", "-", limit).Result()
	if err == redis.Nil {
		return []StreamEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	events := make([]StreamEvent, 0, len(msgs))
	// XRevRange returns newest first; walk backwards for chronological order
	for i := len(msgs) - 1; i >= 0; i-- {
		data, ok := msgs[i].Values["data"].(string)
		if !ok {
			continue
		}

		var entry struct {
			Channel   string                 `json:"channel"`
			Event     map[string]interface{} `json:"event"`
			Timestamp string                 `json:"timestamp"`
		}
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			s.log.Warn("Failed to unmarshal history event", zap.Error(err))
			continue
		}

		ts, _ := time.Parse(time.RFC3339, entry.Timestamp)
		if ts.IsZero() {
			ts = time.Now().UTC()
		}

		events = append(events, StreamEvent{
			Channel:   entry.Channel,
			Event:     entry.Event,
			Timestamp: ts,
		})
	}

	return events, nil
}
